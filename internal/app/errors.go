package app

import "errors"

// Application errors.
var (
	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrNoScript indicates the application has no script to run.
	ErrNoScript = errors.New("no script")
)

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// ScriptError reports a script that failed to load or run its main chunk.
type ScriptError struct {
	Path string
	Err  error
}

func (e *ScriptError) Error() string {
	return "script " + e.Path + ": " + e.Err.Error()
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
