package event

import "sync"

type entry struct {
	id uint64
	fn Listener
}

// channel holds the listeners of one kind.
type channel struct {
	kind Kind

	mu        sync.Mutex
	nextID    uint64
	durable   []entry
	once      []Listener
	emissions uint64
}

func newChannel(kind Kind) *channel {
	return &channel{kind: kind}
}

func (c *channel) register(fn Listener) (ListenerID, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.durable = append(c.durable, entry{id: c.nextID, fn: fn})
	return ListenerID{Kind: c.kind, Value: c.nextID}, c.countLocked()
}

func (c *channel) registerOnce(fn Listener) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.once = append(c.once, fn)
	return c.countLocked()
}

func (c *channel) unregister(value uint64) (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, e := range c.durable {
		if e.id == value {
			c.durable = append(c.durable[:i], c.durable[i+1:]...)
			return true, c.countLocked()
		}
	}
	return false, c.countLocked()
}

// begin counts one emission and returns the durable snapshot and the
// one-shot listeners, leaving the one-shot slot empty.
func (c *channel) begin() ([]entry, []Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.emissions++

	var durable []entry
	if len(c.durable) > 0 {
		durable = make([]entry, len(c.durable))
		copy(durable, c.durable)
	}

	once := c.once
	c.once = nil
	return durable, once
}

func (c *channel) hasListeners() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.durable) > 0 || len(c.once) > 0
}

func (c *channel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countLocked()
}

func (c *channel) countLocked() int {
	return len(c.durable) + len(c.once)
}

func (c *channel) emitted() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emissions
}

func (c *channel) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.durable = nil
	c.once = nil
}
