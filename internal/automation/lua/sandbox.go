package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// removedGlobals can load code from outside the script.
var removedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"module",
}

// Sandbox restricts what a script can reach.
type Sandbox struct {
	L *lua.LState
}

// NewSandbox creates a sandbox for L.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{L: L}
}

// Install removes code loading globals and, when print is non-nil, routes
// the print builtin to it.
func (s *Sandbox) Install(print func(msg string)) {
	for _, name := range removedGlobals {
		s.L.SetGlobal(name, lua.LNil)
	}
	if print != nil {
		s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
			print(joinArgs(L, 1))
			return 0
		}))
	}
}

// Allowed reports whether a global is reachable from scripts.
func (s *Sandbox) Allowed(name string) bool {
	return s.L.GetGlobal(name) != lua.LNil
}

// joinArgs renders the arguments from index start on with tostring
// semantics, separated by tabs.
func joinArgs(L *lua.LState, start int) string {
	top := L.GetTop()
	parts := make([]string, 0, top-start+1)
	for i := start; i <= top; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	return strings.Join(parts, "\t")
}
