package dispatch

import (
	"runtime/debug"
	"time"
)

// Executor runs calls with panic recovery and timing.
type Executor struct{}

// NewExecutor creates a new executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute runs fn and returns the result. Panics are recovered.
func (e *Executor) Execute(fn func() error) (result Result) {
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = debug.Stack()
		}
	}()

	result.Error = fn()
	return result
}
