package dispatch

import "time"

// Result represents the outcome of one listener call.
type Result struct {
	// Error is the error returned by the call, if any.
	Error error

	// Panicked is true if the call panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the call took.
	Duration time.Duration
}

// IsSuccess returns true if the call completed without error or panic.
func (r Result) IsSuccess() bool {
	return !r.Panicked && r.Error == nil
}

// IsError returns true if the call returned an error (not panic).
func (r Result) IsError() bool {
	return r.Error != nil && !r.Panicked
}

// IsPanic returns true if the call panicked.
func (r Result) IsPanic() bool {
	return r.Panicked
}
