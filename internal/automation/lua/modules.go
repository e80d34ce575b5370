package lua

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/simscript/internal/event"
	"github.com/dshills/simscript/internal/override"
)

// event module

func (r *Runtime) eventFuncs() map[string]lua.LGFunction {
	funcs := map[string]lua.LGFunction{
		"on":    r.eventOn,
		"off":   r.eventOff,
		"once":  r.eventOnce,
		"await": r.eventAwait,
		"kinds": r.eventKinds,
	}
	for _, k := range event.Kinds() {
		kind := k
		funcs["on_"+kind.String()] = func(L *lua.LState) int {
			return r.register(L, kind, L.CheckFunction(1))
		}
	}
	return funcs
}

// on(kind, fn) -> id
func (r *Runtime) eventOn(L *lua.LState) int {
	kind := checkKind(L, 1)
	return r.register(L, kind, L.CheckFunction(2))
}

func (r *Runtime) register(L *lua.LState, kind event.Kind, fn *lua.LFunction) int {
	id, err := r.session.Register(kind, r.callback(kind, fn))
	if err != nil {
		L.RaiseError("event.on: %s", err.Error())
		return 0
	}
	handle := id.String()
	r.handles[handle] = id
	L.Push(lua.LString(handle))
	return 1
}

// off(id) -> bool
func (r *Runtime) eventOff(L *lua.LState) int {
	handle := L.CheckString(1)
	id, ok := r.handles[handle]
	if !ok {
		L.Push(lua.LFalse)
		return 1
	}
	delete(r.handles, handle)
	L.Push(lua.LBool(r.session.Unregister(id)))
	return 1
}

// once(kind, fn)
func (r *Runtime) eventOnce(L *lua.LState) int {
	kind := checkKind(L, 1)
	fn := L.CheckFunction(2)
	if err := r.session.RegisterOnce(kind, r.callback(kind, fn)); err != nil {
		L.RaiseError("event.once: %s", err.Error())
	}
	return 0
}

// await(kind) -> payload...
func (r *Runtime) eventAwait(L *lua.LState) int {
	t, ok := r.threads[L]
	if !ok {
		L.RaiseError("event.await must be called from the main chunk or an event callback")
		return 0
	}
	kind := checkKind(L, 1)
	if r.inProtectedCall(L) {
		L.RaiseError("event.await cannot be called inside pcall")
		return 0
	}
	t.awaiting = true
	t.kind = kind
	return L.Yield()
}

// kinds() -> {names}
func (r *Runtime) eventKinds(L *lua.LState) int {
	tbl := L.NewTable()
	for _, k := range event.Kinds() {
		tbl.Append(lua.LString(k.String()))
	}
	L.Push(tbl)
	return 1
}

func (r *Runtime) callback(kind event.Kind, fn *lua.LFunction) event.Listener {
	name := "on " + kind.String()
	return func(ev event.Event) error {
		return r.start(name, fn, payload(ev)...)
	}
}

func checkKind(L *lua.LState, n int) event.Kind {
	kind, err := event.ParseKind(L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return kind
}

// controller module

func (r *Runtime) controllerFuncs() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"get":       r.controllerGet,
		"set":       r.controllerSet,
		"get_value": r.controllerGetValue,
		"set_value": r.controllerSetValue,
		"clear":     r.controllerClear,
		"families":  r.controllerFamilies,
	}
}

// get(family, index) -> {name = value}
func (r *Runtime) controllerGet(L *lua.LState) int {
	cache := r.checkCache(L, 1)
	index := checkIndex(L, 2)

	tbl := L.NewTable()
	for _, c := range override.Controls(cache.Family()) {
		v := cache.Get(index, c.Key)
		if c.Analog {
			tbl.RawSetString(c.Name, lua.LNumber(v))
		} else {
			tbl.RawSetString(c.Name, lua.LBool(v != 0))
		}
	}
	L.Push(tbl)
	return 1
}

// set(family, index, {name = value} [, policy])
func (r *Runtime) controllerSet(L *lua.LState) int {
	cache := r.checkCache(L, 1)
	index := checkIndex(L, 2)
	tbl := L.CheckTable(3)
	policy := checkPolicy(L, 4)

	type pending struct {
		key   override.ControlKey
		value float64
	}
	var sets []pending
	tbl.ForEach(func(k, v lua.LValue) {
		name, ok := k.(lua.LString)
		if !ok {
			L.ArgError(3, "control names must be strings")
		}
		c, err := override.LookupControl(cache.Family(), string(name))
		if err != nil {
			L.ArgError(3, err.Error())
		}
		sets = append(sets, pending{c.Key, checkValue(L, 3, v)})
	})

	for _, s := range sets {
		if err := cache.Set(index, s.key, s.value, policy); err != nil {
			L.RaiseError("controller.set: %s", err.Error())
		}
	}
	return 0
}

// get_value(family, index, name) -> number
func (r *Runtime) controllerGetValue(L *lua.LState) int {
	cache := r.checkCache(L, 1)
	index := checkIndex(L, 2)
	c := checkControl(L, 3, cache.Family())
	L.Push(lua.LNumber(cache.Get(index, c.Key)))
	return 1
}

// set_value(family, index, name, value [, policy])
func (r *Runtime) controllerSetValue(L *lua.LState) int {
	cache := r.checkCache(L, 1)
	index := checkIndex(L, 2)
	c := checkControl(L, 3, cache.Family())
	value := checkValue(L, 4, L.Get(4))
	policy := checkPolicy(L, 5)

	if err := cache.Set(index, c.Key, value, policy); err != nil {
		L.RaiseError("controller.set_value: %s", err.Error())
	}
	return 0
}

// clear(family)
func (r *Runtime) controllerClear(L *lua.LState) int {
	r.checkCache(L, 1).Clear()
	return 0
}

// families() -> {names}
func (r *Runtime) controllerFamilies(L *lua.LState) int {
	tbl := L.NewTable()
	for _, f := range override.Families() {
		if _, ok := r.caches[f]; ok {
			tbl.Append(lua.LString(f))
		}
	}
	L.Push(tbl)
	return 1
}

func (r *Runtime) checkCache(L *lua.LState, n int) *override.Cache {
	f, err := override.ParseFamily(L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
		return nil
	}
	cache, ok := r.caches[f]
	if !ok {
		L.ArgError(n, "controller family "+string(f)+" is not bound")
		return nil
	}
	return cache
}

func checkIndex(L *lua.LState, n int) int {
	index := L.CheckInt(n)
	if index < 0 {
		L.ArgError(n, "controller index must not be negative")
	}
	return index
}

func checkControl(L *lua.LState, n int, f override.Family) override.Control {
	c, err := override.LookupControl(f, L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return c
}

func checkPolicy(L *lua.LState, n int) override.ClearPolicy {
	if L.Get(n) == lua.LNil {
		return override.OnNextStepBoundary
	}
	p, err := override.ParseClearPolicy(L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return p
}

// checkValue accepts booleans for digital controls and numbers for any.
func checkValue(L *lua.LState, n int, v lua.LValue) float64 {
	switch val := v.(type) {
	case lua.LBool:
		if val {
			return 1
		}
		return 0
	case lua.LNumber:
		return float64(val)
	default:
		L.ArgError(n, "control value must be a boolean or a number, got "+v.Type().String())
		return 0
	}
}

// emulation module

func (r *Runtime) emulationFuncs() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"pause":      r.emulationCall(func(e Emulation) { e.Pause() }),
		"resume":     r.emulationCall(func(e Emulation) { e.Resume() }),
		"reset":      r.emulationCall(func(e Emulation) { e.Reset() }),
		"step_count": r.emulationStepCount,
	}
}

func (r *Runtime) emulationCall(fn func(Emulation)) lua.LGFunction {
	return func(L *lua.LState) int {
		if r.emu == nil {
			L.RaiseError("emulation control is not available")
			return 0
		}
		fn(r.emu)
		return 0
	}
}

func (r *Runtime) emulationStepCount(L *lua.LState) int {
	if r.emu == nil {
		L.RaiseError("emulation control is not available")
		return 0
	}
	L.Push(lua.LNumber(r.emu.Steps()))
	return 1
}

// log module

func (r *Runtime) logFuncs() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"debug": func(L *lua.LState) int {
			r.log.Debug().Msg(joinArgs(L, 1))
			return 0
		},
		"info": func(L *lua.LState) int {
			r.log.Info().Msg(joinArgs(L, 1))
			return 0
		},
		"warn": func(L *lua.LState) int {
			r.log.Warn().Msg(joinArgs(L, 1))
			return 0
		},
		"error": func(L *lua.LState) int {
			r.log.Error().Msg(joinArgs(L, 1))
			return 0
		},
	}
}
