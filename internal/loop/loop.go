package loop

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DefaultQueueSize is the task queue capacity used when none is configured.
const DefaultQueueSize = 1024

// task is a unit of work marshalled onto the loop goroutine.
type task struct {
	fn func() error

	// result receives the outcome for Do callers. Nil for Submit.
	result chan error
}

// Loop serializes work onto a single designated goroutine.
type Loop struct {
	queue chan task
	done  chan struct{}

	owner  atomic.Uint64
	closed atomic.Bool

	// closeOnce ensures Close is only called once
	closeOnce sync.Once

	log zerolog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithQueueSize sets the task queue capacity.
func WithQueueSize(size int) Option {
	return func(l *Loop) {
		if size > 0 {
			l.queue = make(chan task, size)
		}
	}
}

// WithLogger sets the logger used to report failed fire-and-forget tasks.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loop) {
		l.log = log
	}
}

// New creates an unbound loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		queue: make(chan task, DefaultQueueSize),
		done:  make(chan struct{}),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Bind makes the calling goroutine the loop owner and locks it to its OS
// thread. Binding twice from the same goroutine is a no-op.
func (l *Loop) Bind() error {
	id := GoroutineID()
	if !l.owner.CompareAndSwap(0, id) {
		if l.owner.Load() == id {
			return nil
		}
		return ErrAlreadyBound
	}
	runtime.LockOSThread()
	return nil
}

// Unbind releases ownership. Tasks still queued are failed when the loop
// has been closed, otherwise they stay queued for the next owner.
func (l *Loop) Unbind() {
	if !l.IsOwner() {
		return
	}
	if l.closed.Load() {
		l.drainQueue(ErrLoopClosed)
	}
	l.owner.Store(0)
	runtime.UnlockOSThread()
}

// IsOwner reports whether the caller runs on the loop goroutine.
func (l *Loop) IsOwner() bool {
	id := l.owner.Load()
	return id != 0 && GoroutineID() == id
}

// Run binds the calling goroutine and processes tasks until the context is
// cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Bind(); err != nil {
		return err
	}
	defer l.Unbind()

	for {
		select {
		case <-ctx.Done():
			l.drainQueue(ctx.Err())
			return ctx.Err()
		case <-l.done:
			l.drainQueue(ErrLoopClosed)
			return nil
		case t := <-l.queue:
			l.execute(t)
		}
	}
}

// Drain runs the tasks that were queued when it was called and returns how
// many ran. Tasks submitted by those tasks wait for the next Drain.
func (l *Loop) Drain() (int, error) {
	if !l.IsOwner() {
		return 0, ErrNotOwner
	}
	n := len(l.queue)
	for i := 0; i < n; i++ {
		select {
		case t := <-l.queue:
			l.execute(t)
		default:
			return i, nil
		}
	}
	return n, nil
}

// Wait blocks the owner until at least one task arrives, runs it and then
// drains whatever else is queued. Used while the simulation is paused.
func (l *Loop) Wait(ctx context.Context) error {
	if !l.IsOwner() {
		return ErrNotOwner
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopClosed
	case t := <-l.queue:
		l.execute(t)
	}
	_, err := l.Drain()
	return err
}

// Submit queues fn for execution on the loop goroutine without waiting.
// Safe to call from any goroutine.
func (l *Loop) Submit(fn func()) error {
	if fn == nil {
		return ErrNilTask
	}
	if l.closed.Load() {
		return ErrLoopClosed
	}
	t := task{fn: func() error {
		fn()
		return nil
	}}
	select {
	case <-l.done:
		return ErrLoopClosed
	case l.queue <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs fn on the loop goroutine and waits for its result. When called on
// the loop goroutine fn runs inline, so a task may safely call Do.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	if fn == nil {
		return ErrNilTask
	}
	if l.closed.Load() {
		return ErrLoopClosed
	}
	if l.IsOwner() {
		return l.call(fn)
	}

	t := task{fn: fn, result: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopClosed
	case l.queue <- t:
	}

	select {
	case <-ctx.Done():
		// Already queued; it will still run, we just stop waiting.
		return ctx.Err()
	case <-l.done:
		return ErrLoopClosed
	case err := <-t.result:
		return err
	}
}

// Close stops the loop. Pending Do callers receive ErrLoopClosed.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
}

// IsClosed returns true if the loop has been closed.
func (l *Loop) IsClosed() bool {
	return l.closed.Load()
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	return len(l.queue)
}

// execute runs a single task and delivers its result.
func (l *Loop) execute(t task) {
	err := l.call(t.fn)
	if t.result != nil {
		t.result <- err
		return
	}
	if err != nil {
		l.log.Error().Err(err).Msg("loop task failed")
	}
}

// call runs fn with panic recovery.
func (l *Loop) call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskPanicError{Value: r}
		}
	}()
	return fn()
}

// drainQueue fails every queued task with err.
func (l *Loop) drainQueue(err error) {
	for {
		select {
		case t := <-l.queue:
			if t.result != nil {
				t.result <- err
			}
		default:
			return
		}
	}
}
