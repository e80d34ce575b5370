package automation

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dshills/simscript/internal/event"
	"github.com/dshills/simscript/internal/event/dispatch"
)

// Resume receives the payload that completed a wait.
type Resume func(ev event.Event) error

// Observer receives the number of parked waits per kind.
type Observer interface {
	WaitsChanged(kind event.Kind, parked int)
}

type waitState uint8

const (
	waitParked waitState = iota
	waitResumed
	waitCancelled
)

// Wait is a continuation parked against one future emission.
type Wait struct {
	bridge *Bridge
	kind   event.Kind
	seq    uint64
	resume Resume
	state  waitState
}

// Kind returns the awaited kind.
func (w *Wait) Kind() event.Kind {
	return w.kind
}

// Done reports whether the wait was resumed or cancelled.
func (w *Wait) Done() bool {
	return w.state != waitParked
}

// Cancel removes a parked wait. It returns false if the wait already
// resumed or was cancelled.
func (w *Wait) Cancel() bool {
	if w.state != waitParked {
		return false
	}
	w.state = waitCancelled
	w.bridge.remove(w)
	return true
}

type waitList struct {
	waits    []*Wait
	listener event.ListenerID
	active   bool
}

// Bridge parks continuations in per-kind wait lists. A kind's list holds a
// durable hub listener only while it is non-empty.
type Bridge struct {
	hub      *event.Hub
	log      zerolog.Logger
	observer Observer
	executor *dispatch.Executor
	lists    map[event.Kind]*waitList
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithBridgeLogger sets the logger for failing resumptions.
func WithBridgeLogger(logger zerolog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.log = logger
	}
}

// WithBridgeObserver sets the parked wait observer.
func WithBridgeObserver(o Observer) BridgeOption {
	return func(b *Bridge) {
		b.observer = o
	}
}

// NewBridge creates a bridge over hub.
func NewBridge(hub *event.Hub, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		hub:      hub,
		log:      zerolog.Nop(),
		executor: dispatch.NewExecutor(),
		lists:    make(map[event.Kind]*waitList),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Await parks resume against the next emission of kind that starts after
// this call. Nothing is registered on error.
func (b *Bridge) Await(kind event.Kind, resume Resume) (*Wait, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("await %s: %w", kind, event.ErrUnknownKind)
	}
	if resume == nil {
		return nil, fmt.Errorf("await %s: %w", kind, event.ErrInvalidListener)
	}

	list := b.lists[kind]
	if list == nil {
		list = &waitList{}
		b.lists[kind] = list
	}
	if !list.active {
		id, err := b.hub.Register(kind, func(ev event.Event) error {
			b.resumeReady(kind, ev)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("await %s: %w", kind, err)
		}
		list.listener = id
		list.active = true
	}

	w := &Wait{
		bridge: b,
		kind:   kind,
		seq:    b.hub.Emissions(kind),
		resume: resume,
	}
	list.waits = append(list.waits, w)
	b.changed(kind, list)
	return w, nil
}

// Parked returns the number of parked waits for kind.
func (b *Bridge) Parked(kind event.Kind) int {
	if list := b.lists[kind]; list != nil {
		return len(list.waits)
	}
	return 0
}

// resumeReady runs every wait parked before the current emission started.
// Waits parked during this emission stay for the next one.
func (b *Bridge) resumeReady(kind event.Kind, ev event.Event) {
	list := b.lists[kind]
	if list == nil {
		return
	}
	current := b.hub.Emissions(kind)

	var ready, later []*Wait
	for _, w := range list.waits {
		if w.seq < current {
			ready = append(ready, w)
		} else {
			later = append(later, w)
		}
	}
	list.waits = later
	if len(ready) > 0 {
		b.changed(kind, list)
	}

	for _, w := range ready {
		if w.state != waitParked {
			continue
		}
		w.state = waitResumed
		b.run(w, ev)
	}

	b.release(kind, list)
}

func (b *Bridge) run(w *Wait, ev event.Event) {
	result := b.executor.Execute(func() error {
		return w.resume(ev)
	})
	switch {
	case result.IsPanic():
		b.log.Error().
			Str("kind", w.kind.String()).
			Interface("panic", result.PanicValue).
			Bytes("stack", result.PanicStack).
			Msg("resumption panicked")
	case result.IsError():
		b.log.Error().
			Err(result.Error).
			Str("kind", w.kind.String()).
			Msg("resumption failed")
	}
}

func (b *Bridge) remove(w *Wait) {
	list := b.lists[w.kind]
	if list == nil {
		return
	}
	for i, cur := range list.waits {
		if cur == w {
			list.waits = append(list.waits[:i], list.waits[i+1:]...)
			b.changed(w.kind, list)
			break
		}
	}
	b.release(w.kind, list)
}

// release drops the hub listener of an empty list.
func (b *Bridge) release(kind event.Kind, list *waitList) {
	if len(list.waits) > 0 || !list.active {
		return
	}
	b.hub.Unregister(list.listener)
	list.active = false
	list.listener = event.ListenerID{}
}

func (b *Bridge) changed(kind event.Kind, list *waitList) {
	if b.observer != nil {
		b.observer.WaitsChanged(kind, len(list.waits))
	}
}
