package lua

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/simscript/internal/automation"
	"github.com/dshills/simscript/internal/event"
	"github.com/dshills/simscript/internal/override"
)

// Emulation is the control surface exposed as the emulation module.
// Calls are requests; they take effect at the next step boundary.
type Emulation interface {
	Pause()
	Resume()
	Reset()
	Steps() uint64
}

// thread is one running coroutine: the main chunk or one callback call.
type thread struct {
	co     *lua.LState
	cancel context.CancelFunc
	fn     *lua.LFunction
	name   string

	awaiting bool
	kind     event.Kind
}

// Runtime runs one script against the hub.
type Runtime struct {
	state   *State
	session *automation.Session
	caches  map[override.Family]*override.Cache
	emu     Emulation
	log     zerolog.Logger

	threads   map[*lua.LState]*thread
	protected map[*lua.LState]int
	handles   map[string]event.ListenerID
	stateOpts []StateOption
	closed    bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithCaches exposes override caches through the controller module.
func WithCaches(caches ...*override.Cache) Option {
	return func(r *Runtime) {
		for _, c := range caches {
			r.caches[c.Family()] = c
		}
	}
}

// WithEmulation exposes e through the emulation module.
func WithEmulation(e Emulation) Option {
	return func(r *Runtime) {
		r.emu = e
	}
}

// WithLogger sets the logger used by the log module and for failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runtime) {
		r.log = logger
	}
}

// WithStateOptions passes opts to the runtime's State.
func WithStateOptions(opts ...StateOption) Option {
	return func(r *Runtime) {
		r.stateOpts = append(r.stateOpts, opts...)
	}
}

// NewRuntime creates a runtime with its own state and session.
func NewRuntime(hub *event.Hub, bridge *automation.Bridge, opts ...Option) *Runtime {
	r := &Runtime{
		caches:    make(map[override.Family]*override.Cache),
		log:       zerolog.Nop(),
		threads:   make(map[*lua.LState]*thread),
		protected: make(map[*lua.LState]int),
		handles:   make(map[string]event.ListenerID),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.session = automation.NewSession(hub, bridge, r.log)
	r.log = r.log.With().Str("session", r.session.ID().String()).Logger()
	r.state = NewState(append(r.stateOpts, WithPrint(func(msg string) {
		r.log.Info().Msg(msg)
	}))...)
	r.guardProtectedCalls()

	r.state.RegisterModule("event", r.eventFuncs())
	r.state.RegisterModule("controller", r.controllerFuncs())
	r.state.RegisterModule("emulation", r.emulationFuncs())
	r.state.RegisterModule("log", r.logFuncs())
	return r
}

// RunString starts src as the main chunk. It returns when the chunk
// finishes or first suspends.
func (r *Runtime) RunString(name, src string) error {
	if r.closed {
		return ErrRuntimeClosed
	}
	fn, err := r.state.LoadString(name, src)
	if err != nil {
		return err
	}
	return r.start(name, fn)
}

// RunFile starts the file at path as the main chunk.
func (r *Runtime) RunFile(path string) error {
	if r.closed {
		return ErrRuntimeClosed
	}
	fn, err := r.state.LoadFile(path)
	if err != nil {
		return err
	}
	return r.start(path, fn)
}

// Session returns the session holding the script's listeners and waits.
func (r *Runtime) Session() *automation.Session {
	return r.session
}

// Running returns the number of coroutines that have not finished.
func (r *Runtime) Running() int {
	return len(r.threads)
}

// Close releases every listener and wait, then closes the state.
func (r *Runtime) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.session.Close()
	for _, t := range r.threads {
		if t.cancel != nil {
			t.cancel()
		}
	}
	clear(r.threads)
	clear(r.protected)
	clear(r.handles)
	r.state.Close()
}

func (r *Runtime) start(name string, fn *lua.LFunction, args ...lua.LValue) error {
	co, cancel := r.state.L.NewThread()
	t := &thread{co: co, cancel: cancel, fn: fn, name: name}
	r.threads[co] = t
	return r.resume(t, args...)
}

func (r *Runtime) resume(t *thread, args ...lua.LValue) error {
	if r.closed {
		return ErrRuntimeClosed
	}

	st, err, _ := r.state.L.Resume(t.co, t.fn, args...)
	switch st {
	case lua.ResumeError:
		r.finish(t)
		return fmt.Errorf("%s: %w", t.name, err)
	case lua.ResumeOK:
		r.finish(t)
		return nil
	}

	kind := event.KindStepAdvanced
	if t.awaiting {
		kind = t.kind
		t.awaiting = false
	}
	_, err = r.session.Await(kind, func(ev event.Event) error {
		return r.resume(t, payload(ev)...)
	})
	if err != nil {
		r.finish(t)
		return fmt.Errorf("%s: await %s: %w", t.name, kind, err)
	}
	return nil
}

func (r *Runtime) finish(t *thread) {
	delete(r.threads, t.co)
	if t.cancel != nil {
		t.cancel()
	}
}

// payload converts an event into the values passed to Lua.
func payload(ev event.Event) []lua.LValue {
	switch e := ev.(type) {
	case event.FrameProduced:
		return []lua.LValue{lua.LNumber(e.Width), lua.LNumber(e.Height), lua.LString(e.Pixels)}
	case event.MemoryWatchHit:
		return []lua.LValue{
			lua.LBool(e.IsWrite),
			lua.LNumber(e.Address),
			lua.LNumber(e.Value),
			lua.LString(strconv.FormatUint(e.Value, 10)),
		}
	case event.CodeWatchHit:
		return []lua.LValue{lua.LNumber(e.Address)}
	case event.InterruptRaised:
		return []lua.LValue{lua.LNumber(e.CauseMask)}
	case event.InterruptCleared:
		return []lua.LValue{lua.LNumber(e.CauseMask)}
	default:
		return nil
	}
}
