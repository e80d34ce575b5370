package event

import (
	"runtime/debug"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dshills/simscript/internal/event/dispatch"
	"github.com/dshills/simscript/internal/loop"
)

// Hub aggregates one channel per kind. It is the only object producers and
// automation code talk to.
//
// Registration may happen on any goroutine. Emit is restricted to the owner
// goroutine when an Owner is configured.
type Hub struct {
	channels [kindCount]*channel

	owner      Owner
	fatal      FatalHandler
	log        zerolog.Logger
	observer   Observer
	dispatcher *dispatch.SyncDispatcher

	closed atomic.Bool
}

// NewHub creates a hub with an empty channel for every kind.
func NewHub(opts ...HubOption) *Hub {
	cfg := defaultHubConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.fatal == nil {
		cfg.fatal = FatalExit(cfg.logger)
	}

	h := &Hub{
		owner:      cfg.owner,
		fatal:      cfg.fatal,
		log:        cfg.logger,
		observer:   cfg.observer,
		dispatcher: dispatch.NewSyncDispatcher(),
	}
	for _, k := range Kinds() {
		h.channels[k] = newChannel(k)
	}
	return h
}

// Register adds a durable listener for kind and returns its handle.
func (h *Hub) Register(kind Kind, fn Listener) (ListenerID, error) {
	if fn == nil {
		return ListenerID{}, ErrInvalidListener
	}
	if !kind.Valid() {
		return ListenerID{}, ErrUnknownKind
	}
	if h.closed.Load() {
		return ListenerID{}, ErrHubClosed
	}

	id, n := h.channels[kind].register(fn)
	h.observer.ListenersChanged(kind, n)
	return id, nil
}

// RegisterOnce adds a listener that runs on the next emission of kind only.
func (h *Hub) RegisterOnce(kind Kind, fn Listener) error {
	if fn == nil {
		return ErrInvalidListener
	}
	if !kind.Valid() {
		return ErrUnknownKind
	}
	if h.closed.Load() {
		return ErrHubClosed
	}

	n := h.channels[kind].registerOnce(fn)
	h.observer.ListenersChanged(kind, n)
	return nil
}

// Unregister removes a durable listener. It returns false if the handle is
// not registered.
func (h *Hub) Unregister(id ListenerID) bool {
	if !id.Kind.Valid() {
		return false
	}
	ok, n := h.channels[id.Kind].unregister(id.Value)
	if ok {
		h.observer.ListenersChanged(id.Kind, n)
	}
	return ok
}

// HasListeners reports whether an emission of kind would reach anyone.
func (h *Hub) HasListeners(kind Kind) bool {
	if !kind.Valid() {
		return false
	}
	return h.channels[kind].hasListeners()
}

// ListenerCount returns the number of durable and one-shot listeners for kind.
func (h *Hub) ListenerCount(kind Kind) int {
	if !kind.Valid() {
		return 0
	}
	return h.channels[kind].count()
}

// Emissions returns how many emissions of kind have started.
func (h *Hub) Emissions(kind Kind) uint64 {
	if !kind.Valid() {
		return 0
	}
	return h.channels[kind].emitted()
}

// Emit delivers ev to every listener of its kind, synchronously.
func (h *Hub) Emit(ev Event) {
	if ev == nil {
		return
	}
	kind := ev.Kind()

	if h.owner != nil && !h.owner.IsOwner() {
		h.fatal(&AffinityError{
			Op:        "emit " + kind.String(),
			Goroutine: loop.GoroutineID(),
			Stack:     debug.Stack(),
		})
		return
	}
	if h.closed.Load() {
		return
	}

	ch := h.channels[kind]
	durable, once := ch.begin()
	h.observer.EventEmitted(kind)
	if len(once) > 0 {
		h.observer.ListenersChanged(kind, ch.count())
	}

	for _, e := range durable {
		h.deliver(ListenerID{Kind: kind, Value: e.id}, e.fn, ev)
	}
	for _, fn := range once {
		h.deliver(ListenerID{Kind: kind}, fn, ev)
	}
}

func (h *Hub) deliver(id ListenerID, fn Listener, ev Event) {
	result := h.dispatcher.Dispatch(func() error {
		return fn(ev)
	})
	h.observer.ListenerDispatched(id.Kind, result.Duration)
	if result.IsSuccess() {
		return
	}

	var err error
	switch {
	case result.IsPanic():
		err = &PanicError{
			Listener: id,
			Kind:     id.Kind,
			Value:    result.PanicValue,
			Stack:    string(result.PanicStack),
		}
	default:
		err = &ListenerError{Listener: id, Kind: id.Kind, Err: result.Error}
	}

	h.observer.ListenerFailed(id.Kind)
	h.log.Error().
		Err(err).
		Str("kind", id.Kind.String()).
		Uint64("listener", id.Value).
		Msg("listener failed")
}

// Stats returns dispatch totals across all kinds. Safe from any goroutine.
func (h *Hub) Stats() dispatch.Stats {
	return h.dispatcher.Stats()
}

// Close drops every listener. Later registrations fail with ErrHubClosed
// and later emissions are ignored.
func (h *Hub) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	for _, ch := range h.channels {
		ch.clear()
		h.observer.ListenersChanged(ch.kind, 0)
	}
}
