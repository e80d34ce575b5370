package loop

import "errors"

// Sentinel errors for the loop.
var (
	// ErrLoopClosed is returned when a task is submitted to a closed loop.
	ErrLoopClosed = errors.New("loop is closed")

	// ErrQueueFull is returned when the task queue cannot accept more work.
	ErrQueueFull = errors.New("loop task queue is full")

	// ErrAlreadyBound is returned when a second goroutine tries to bind the loop.
	ErrAlreadyBound = errors.New("loop is already bound to another goroutine")

	// ErrNotOwner is returned when an owner-only operation is called off the loop goroutine.
	ErrNotOwner = errors.New("not called on the loop goroutine")

	// ErrNilTask is returned when a nil function is submitted.
	ErrNilTask = errors.New("task cannot be nil")
)

// TaskPanicError wraps a panic raised by a task.
type TaskPanicError struct {
	// Value is the value passed to panic().
	Value any
}

// Error implements the error interface.
func (e *TaskPanicError) Error() string {
	return "loop task panicked"
}
