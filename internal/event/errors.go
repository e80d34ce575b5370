package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the event hub.
var (
	// ErrUnknownKind is returned when a kind or kind name is not part of the closed set.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrInvalidListener is returned when a nil listener is registered.
	ErrInvalidListener = errors.New("listener cannot be nil")

	// ErrThreadAffinity marks an operation performed off the owner goroutine.
	ErrThreadAffinity = errors.New("thread affinity violation")

	// ErrListenerPanic is matched by PanicError.
	ErrListenerPanic = errors.New("listener panicked")
)

// AffinityError reports an owner-only operation called from the wrong goroutine.
type AffinityError struct {
	// Op is the operation that was attempted, e.g. "emit step_advanced".
	Op string

	// Goroutine is the id of the offending goroutine.
	Goroutine uint64

	// Stack is the stack trace of the call site.
	Stack []byte
}

// Error implements the error interface.
func (e *AffinityError) Error() string {
	return fmt.Sprintf("%s called from goroutine %d, which does not own the hub", e.Op, e.Goroutine)
}

// Is allows errors.Is to match AffinityError with ErrThreadAffinity.
func (e *AffinityError) Is(target error) bool {
	return target == ErrThreadAffinity
}

// ListenerError wraps an error returned by a listener.
type ListenerError struct {
	// Listener identifies the failing listener. Zero for one-shot listeners.
	Listener ListenerID

	// Kind is the kind being dispatched.
	Kind Kind

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ListenerError) Error() string {
	return "listener " + e.Listener.String() + " on " + e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ListenerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic raised by a listener.
type PanicError struct {
	// Listener identifies the panicking listener. Zero for one-shot listeners.
	Listener ListenerID

	// Kind is the kind being dispatched.
	Kind Kind

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("listener %s on %s panicked: %v", e.Listener, e.Kind, e.Value)
}

// Is allows errors.Is to match PanicError with ErrListenerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrListenerPanic
}

// ErrHubClosed is returned when registering on a closed hub.
var ErrHubClosed = errors.New("hub is closed")
