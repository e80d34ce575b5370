package automation

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/simscript/internal/event"
)

// Session tracks the listeners and waits created on behalf of one script so
// they can be released together when the script stops or reloads.
type Session struct {
	id     uuid.UUID
	hub    *event.Hub
	bridge *Bridge
	log    zerolog.Logger

	listeners  map[event.ListenerID]struct{}
	waits      map[*Wait]struct{}
	generation uint64
	closed     bool
}

// NewSession creates a session with a fresh id.
func NewSession(hub *event.Hub, bridge *Bridge, logger zerolog.Logger) *Session {
	id := uuid.New()
	return &Session{
		id:        id,
		hub:       hub,
		bridge:    bridge,
		log:       logger.With().Str("session", id.String()).Logger(),
		listeners: make(map[event.ListenerID]struct{}),
		waits:     make(map[*Wait]struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Register adds a durable listener owned by the session.
func (s *Session) Register(kind event.Kind, fn event.Listener) (event.ListenerID, error) {
	if s.closed {
		return event.ListenerID{}, ErrSessionClosed
	}
	id, err := s.hub.Register(kind, fn)
	if err != nil {
		return event.ListenerID{}, err
	}
	s.listeners[id] = struct{}{}
	return id, nil
}

// RegisterOnce adds a one-shot listener. One-shot listeners cannot be
// removed from the hub, so a Reset turns pending ones into no-ops.
func (s *Session) RegisterOnce(kind event.Kind, fn event.Listener) error {
	if s.closed {
		return ErrSessionClosed
	}
	if fn == nil {
		return event.ErrInvalidListener
	}
	gen := s.generation
	return s.hub.RegisterOnce(kind, func(ev event.Event) error {
		if s.generation != gen {
			return nil
		}
		return fn(ev)
	})
}

// Unregister removes a listener the session owns. Handles owned by anyone
// else are left alone and report false.
func (s *Session) Unregister(id event.ListenerID) bool {
	if _, ok := s.listeners[id]; !ok {
		return false
	}
	delete(s.listeners, id)
	return s.hub.Unregister(id)
}

// Await parks resume on the bridge and tracks the wait.
func (s *Session) Await(kind event.Kind, resume Resume) (*Wait, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if resume == nil {
		return nil, event.ErrInvalidListener
	}

	var w *Wait
	w, err := s.bridge.Await(kind, func(ev event.Event) error {
		delete(s.waits, w)
		return resume(ev)
	})
	if err != nil {
		return nil, err
	}
	s.waits[w] = struct{}{}
	return w, nil
}

// Listeners returns the number of durable listeners the session owns.
func (s *Session) Listeners() int {
	return len(s.listeners)
}

// Waits returns the number of parked waits the session owns.
func (s *Session) Waits() int {
	return len(s.waits)
}

// Reset unregisters every listener, then cancels every wait.
func (s *Session) Reset() {
	s.generation++

	for id := range s.listeners {
		s.hub.Unregister(id)
	}
	nListeners := len(s.listeners)
	clear(s.listeners)

	nWaits := 0
	for w := range s.waits {
		if w.Cancel() {
			nWaits++
		}
	}
	clear(s.waits)

	s.log.Debug().
		Int("listeners", nListeners).
		Int("waits", nWaits).
		Msg("session reset")
}

// Close resets the session and rejects further use.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.Reset()
	s.closed = true
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	return s.closed
}
