package override

import (
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/dshills/simscript/internal/event"
	"github.com/dshills/simscript/internal/loop"
)

// Observer receives cache activity.
type Observer interface {
	OverrideResolved(family Family, overridden bool)
}

type slot struct {
	controller int
	key        ControlKey
}

type entry struct {
	value    float64
	policy   ClearPolicy
	consumed bool
}

// Cache holds the override entries and last observed values of one
// controller family. It is not safe for concurrent use; all calls are
// expected on the owner goroutine.
type Cache struct {
	family   Family
	owner    event.Owner
	fatal    event.FatalHandler
	log      zerolog.Logger
	observer Observer

	overrides map[slot]*entry
	observed  map[slot]float64

	hub    *event.Hub
	stepID event.ListenerID
}

// Option configures a Cache.
type Option func(*Cache)

// WithOwner enables the affinity check on mutating calls.
func WithOwner(owner event.Owner) Option {
	return func(c *Cache) {
		c.owner = owner
	}
}

// WithFatalHandler replaces the default fatal handler.
func WithFatalHandler(h event.FatalHandler) Option {
	return func(c *Cache) {
		if h != nil {
			c.fatal = h
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.log = logger
	}
}

// WithObserver sets the activity observer.
func WithObserver(o Observer) Option {
	return func(c *Cache) {
		c.observer = o
	}
}

// NewCache creates an empty cache for family.
func NewCache(family Family, opts ...Option) *Cache {
	c := &Cache{
		family:    family,
		log:       zerolog.Nop(),
		overrides: make(map[slot]*entry),
		observed:  make(map[slot]float64),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fatal == nil {
		c.fatal = event.FatalExit(c.log)
	}
	return c
}

// Family returns the family this cache serves.
func (c *Cache) Family() Family {
	return c.family
}

// Resolve returns the value the controller should use for key. An armed or
// consumed override wins over original; otherwise original is returned.
// The returned value is always recorded for Get.
func (c *Cache) Resolve(controller int, key ControlKey, original float64) float64 {
	if !c.checkOwner("resolve") {
		return original
	}
	return c.resolve(slot{controller, key}, original)
}

// ResolvePoll resolves every key of one controller poll in place: values[i]
// holds the original for keys[i] on entry and the resolved value on return.
// The owner is checked once for the whole poll.
func (c *Cache) ResolvePoll(controller int, keys []ControlKey, values []float64) {
	if !c.checkOwner("resolve") {
		return
	}
	for i, key := range keys {
		values[i] = c.resolve(slot{controller, key}, values[i])
	}
}

func (c *Cache) resolve(s slot, original float64) float64 {
	value := original
	e, overridden := c.overrides[s]
	if overridden {
		value = e.value
		e.consumed = true
		if e.policy == OnNextPoll {
			delete(c.overrides, s)
		}
	}
	c.observed[s] = value

	if c.observer != nil {
		c.observer.OverrideResolved(c.family, overridden)
	}
	return value
}

// Set arms an override, replacing any previous entry for the same slot.
func (c *Cache) Set(controller int, key ControlKey, value float64, policy ClearPolicy) error {
	if !policy.Supported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedPolicy, policy)
	}
	if controller < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidController, controller)
	}
	if !HasKey(c.family, key) {
		return fmt.Errorf("%w: %s has no key %s", ErrUnknownControl, c.family, key)
	}
	if !c.checkOwner("set override") {
		return event.ErrThreadAffinity
	}

	c.overrides[slot{controller, key}] = &entry{value: value, policy: policy}
	c.log.Debug().
		Str("family", string(c.family)).
		Int("controller", controller).
		Stringer("key", key).
		Float64("value", value).
		Stringer("policy", policy).
		Msg("override armed")
	return nil
}

// Get returns the value last returned by Resolve for the slot, or 0.
func (c *Cache) Get(controller int, key ControlKey) float64 {
	return c.observed[slot{controller, key}]
}

// State reports the override state of a slot.
func (c *Cache) State(controller int, key ControlKey) EntryState {
	e, ok := c.overrides[slot{controller, key}]
	switch {
	case !ok:
		return Absent
	case e.consumed:
		return Consumed
	default:
		return Armed
	}
}

// Len returns the number of live override entries.
func (c *Cache) Len() int {
	return len(c.overrides)
}

// Clear drops every override entry. Observed values are kept.
func (c *Cache) Clear() {
	if !c.checkOwner("clear overrides") {
		return
	}
	clear(c.overrides)
}

// OnStepBoundary drops consumed OnNextStepBoundary entries.
func (c *Cache) OnStepBoundary() {
	if !c.checkOwner("step boundary") {
		return
	}
	for s, e := range c.overrides {
		if e.policy == OnNextStepBoundary && e.consumed {
			delete(c.overrides, s)
		}
	}
}

// Reset drops override entries and observed values.
func (c *Cache) Reset() {
	if !c.checkOwner("reset overrides") {
		return
	}
	clear(c.overrides)
	clear(c.observed)
}

// Attach registers the step boundary listener on hub.
func (c *Cache) Attach(hub *event.Hub) error {
	if c.hub != nil {
		return ErrAlreadyAttached
	}
	id, err := event.On(hub, func(event.StepAdvanced) error {
		c.OnStepBoundary()
		return nil
	})
	if err != nil {
		return fmt.Errorf("attach %s overrides: %w", c.family, err)
	}
	c.hub = hub
	c.stepID = id
	return nil
}

// Detach removes the step boundary listener. It reports whether the cache
// was attached.
func (c *Cache) Detach() bool {
	if c.hub == nil {
		return false
	}
	ok := c.hub.Unregister(c.stepID)
	c.hub = nil
	c.stepID = event.ListenerID{}
	return ok
}

// Attached reports whether a step boundary listener is registered.
func (c *Cache) Attached() bool {
	return c.hub != nil
}

func (c *Cache) checkOwner(op string) bool {
	if c.owner == nil || c.owner.IsOwner() {
		return true
	}
	c.fatal(&event.AffinityError{
		Op:        op + " " + string(c.family),
		Goroutine: loop.GoroutineID(),
		Stack:     debug.Stack(),
	})
	return false
}
