package event

import "strconv"

// Listener is invoked once per emission of the kind it is registered for.
// The hub does not own anything the listener captures.
type Listener func(ev Event) error

// ListenerID is the handle of a durable listener. Values increase
// monotonically per kind and are never reused by a hub.
type ListenerID struct {
	Kind  Kind
	Value uint64
}

// Less orders handles by kind, then value.
func (id ListenerID) Less(other ListenerID) bool {
	if id.Kind != other.Kind {
		return id.Kind < other.Kind
	}
	return id.Value < other.Value
}

// String returns "kind#value".
func (id ListenerID) String() string {
	return id.Kind.String() + "#" + strconv.FormatUint(id.Value, 10)
}

// On registers a typed durable listener for the kind of T.
func On[T Event](h *Hub, fn func(T) error) (ListenerID, error) {
	if fn == nil {
		return ListenerID{}, ErrInvalidListener
	}
	var zero T
	return h.Register(zero.Kind(), func(ev Event) error {
		return fn(ev.(T))
	})
}
