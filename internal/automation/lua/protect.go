package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// gopher-lua cannot suspend a coroutine across pcall or xpcall: a yield
// inside one is swallowed and the protected call returns as if the callee
// had finished. guardProtectedCalls counts protected calls per coroutine so
// that event.await and coroutine.yield can refuse to run inside one.
func (r *Runtime) guardProtectedCalls() {
	L := r.state.L
	for _, name := range []string{"pcall", "xpcall"} {
		orig, ok := L.GetGlobal(name).(*lua.LFunction)
		if !ok || orig.GFunction == nil {
			continue
		}
		call := orig.GFunction
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			r.protected[L]++
			defer r.leaveProtected(L)
			return call(L)
		}))
	}

	co, ok := L.GetGlobal(lua.CoroutineLibName).(*lua.LTable)
	if !ok {
		return
	}
	yield, ok := co.RawGetString("yield").(*lua.LFunction)
	if !ok || yield.GFunction == nil {
		return
	}
	call := yield.GFunction
	co.RawSetString("yield", L.NewFunction(func(L *lua.LState) int {
		if r.inProtectedCall(L) {
			L.RaiseError("coroutine.yield cannot be called inside pcall")
			return 0
		}
		return call(L)
	}))
}

func (r *Runtime) inProtectedCall(L *lua.LState) bool {
	return r.protected[L] > 0
}

func (r *Runtime) leaveProtected(L *lua.LState) {
	if n := r.protected[L]; n > 1 {
		r.protected[L] = n - 1
	} else {
		delete(r.protected, L)
	}
}
