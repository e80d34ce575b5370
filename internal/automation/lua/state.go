package lua

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// State wraps a gopher-lua state opened with a restricted library set.
//
// gopher-lua's LState is not goroutine-safe. A State must only be used from
// one goroutine.
type State struct {
	L *lua.LState

	sandbox *Sandbox
	closed  bool
}

// StateOption configures a State.
type StateOption func(*stateConfig)

type stateConfig struct {
	callStackSize int
	print         func(msg string)
}

// WithCallStackSize sets the Lua call stack size.
func WithCallStackSize(n int) StateOption {
	return func(c *stateConfig) {
		if n > 0 {
			c.callStackSize = n
		}
	}
}

// WithPrint redirects the print builtin.
func WithPrint(fn func(msg string)) StateOption {
	return func(c *stateConfig) {
		c.print = fn
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) *State {
	cfg := stateConfig{callStackSize: lua.CallStackSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: cfg.callStackSize,
	})
	openSafeLibraries(L)

	s := &State{
		L:       L,
		sandbox: NewSandbox(L),
	}
	s.sandbox.Install(cfg.print)
	return s
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.CoroutineLibName, lua.OpenCoroutine},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	// io, os, debug, package and channel are left closed.
}

// LoadString compiles a chunk without running it.
func (s *State) LoadString(name, src string) (*lua.LFunction, error) {
	if s.closed {
		return nil, ErrStateClosed
	}
	fn, err := s.L.Load(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return fn, nil
}

// LoadFile compiles a file without running it.
func (s *State) LoadFile(path string) (*lua.LFunction, error) {
	if s.closed {
		return nil, ErrStateClosed
	}
	fn, err := s.L.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return fn, nil
}

// RegisterModule installs a global table of Go functions.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) *lua.LTable {
	mod := s.L.SetFuncs(s.L.NewTable(), funcs)
	s.L.SetGlobal(name, mod)
	return mod
}

// Sandbox returns the sandbox installed on the state.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	return s.closed
}

// Close releases the Lua state.
func (s *State) Close() {
	if s.closed {
		return
	}
	s.L.Close()
	s.closed = true
}
