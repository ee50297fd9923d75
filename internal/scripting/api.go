package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/ecsched/internal/core/ecs"
	coresys "github.com/l1jgo/ecsched/internal/core/system"
	"github.com/l1jgo/ecsched/internal/core/typeid"
)

// Field exposes one numeric field of component T to scripts.
type Field[T any] struct {
	Get func(c *T) float64
	Set func(c *T, v float64)
}

type binding struct {
	id  typeid.ID
	has func(w *ecs.World, id ecs.EntityID) bool
	get func(w *ecs.World, id ecs.EntityID, field string) (float64, bool)
	set func(w *ecs.World, id ecs.EntityID, field string, v float64) bool
}

// Bind makes component T visible to scripts as name. Fields without Set are
// read-only.
func Bind[T any](e *Engine, name string, fields map[string]Field[T]) {
	e.components[name] = &binding{
		id: ecs.ComponentOf[T](),
		has: func(w *ecs.World, id ecs.EntityID) bool {
			return ecs.Has[T](w, id)
		},
		get: func(w *ecs.World, id ecs.EntityID, field string) (float64, bool) {
			f, ok := fields[field]
			if !ok || f.Get == nil {
				return 0, false
			}
			c, ok := ecs.Get[T](w, id)
			if !ok {
				return 0, false
			}
			return f.Get(c), true
		},
		set: func(w *ecs.World, id ecs.EntityID, field string, v float64) bool {
			f, ok := fields[field]
			if !ok || f.Set == nil {
				return false
			}
			c, ok := ecs.Get[T](w, id)
			if !ok {
				return false
			}
			f.Set(c, v)
			return true
		},
	}
}

// definition is a system declared by ecs.register_system.
type definition struct {
	name       string
	matcher    ecs.Matcher
	after      []string
	before     []string
	execute    *lua.LFunction
	beforeTick *lua.LFunction
	afterTick  *lua.LFunction
}

type luaSystem struct {
	engine *Engine
	def    *definition
}

func (s *luaSystem) Descriptor() coresys.Descriptor {
	return coresys.Descriptor{Matcher: s.def.matcher}
}

func (s *luaSystem) Execute(w *ecs.World, id ecs.EntityID) {
	if s.def.execute != nil {
		s.engine.call(w, s.def.name, s.def.execute, entityValue(id))
	}
}

func (s *luaSystem) BeforeExecute(w *ecs.World) {
	if s.def.beforeTick != nil {
		s.engine.call(w, s.def.name, s.def.beforeTick)
	}
}

func (s *luaSystem) AfterExecute(w *ecs.World) {
	if s.def.afterTick != nil {
		s.engine.call(w, s.def.name, s.def.afterTick)
	}
}

// Entity ids cross into Lua as numbers; generations stay far below 2^21, so
// the float64 conversion is exact.
func entityValue(id ecs.EntityID) lua.LNumber { return lua.LNumber(float64(id)) }

func entityArg(L *lua.LState, n int) ecs.EntityID {
	return ecs.EntityID(uint64(L.CheckNumber(n)))
}

func (e *Engine) loader(L *lua.LState) int {
	L.Push(e.module(L))
	return 1
}

func (e *Engine) module(L *lua.LState) *lua.LTable {
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"register_system": e.registerSystem,
		"get":             e.get,
		"set":             e.set,
		"has":             e.has,
		"destroy":         e.destroy,
		"log":             e.logMessage,
	})
}

// ecs.register_system{name=..., requires={...}, after={...}, before={...},
// execute=function(id) end, before_tick=function() end, after_tick=function() end}
func (e *Engine) registerSystem(L *lua.LState) int {
	t := L.CheckTable(1)
	name := lStr(t, "name")
	if name == "" {
		L.ArgError(1, "system name required")
		return 0
	}
	if _, dup := e.byName[name]; dup {
		L.ArgError(1, "system "+name+" already declared")
		return 0
	}

	requires := lStrings(t, "requires")
	ids := make([]typeid.ID, 0, len(requires))
	for _, c := range requires {
		b, ok := e.components[c]
		if !ok {
			L.ArgError(1, "unknown component "+c)
			return 0
		}
		ids = append(ids, b.id)
	}

	def := &definition{
		name:    name,
		matcher: ecs.MatchAll(ids...),
		after:   lStrings(t, "after"),
		before:  lStrings(t, "before"),
	}
	def.execute, _ = t.RawGetString("execute").(*lua.LFunction)
	def.beforeTick, _ = t.RawGetString("before_tick").(*lua.LFunction)
	def.afterTick, _ = t.RawGetString("after_tick").(*lua.LFunction)
	if len(ids) == 0 {
		// Without requirements a script system only runs its tick hooks.
		def.matcher = ecs.MatchNone()
	}

	e.defs = append(e.defs, def)
	e.byName[name] = def
	return 0
}

func (e *Engine) current(L *lua.LState) *ecs.World {
	if e.world == nil {
		L.RaiseError("ecs: world access outside a system")
	}
	return e.world
}

func (e *Engine) component(L *lua.LState, n int) *binding {
	name := L.CheckString(n)
	b, ok := e.components[name]
	if !ok {
		L.ArgError(n, "unknown component "+name)
	}
	return b
}

// ecs.get(id, component, field) -> number | nil
func (e *Engine) get(L *lua.LState) int {
	w := e.current(L)
	id := entityArg(L, 1)
	b := e.component(L, 2)
	v, ok := b.get(w, id, L.CheckString(3))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(v))
	return 1
}

// ecs.set(id, component, field, value) -> bool
func (e *Engine) set(L *lua.LState) int {
	w := e.current(L)
	id := entityArg(L, 1)
	b := e.component(L, 2)
	ok := b.set(w, id, L.CheckString(3), float64(L.CheckNumber(4)))
	L.Push(lua.LBool(ok))
	return 1
}

// ecs.has(id, component) -> bool
func (e *Engine) has(L *lua.LState) int {
	w := e.current(L)
	id := entityArg(L, 1)
	b := e.component(L, 2)
	L.Push(lua.LBool(b.has(w, id)))
	return 1
}

// ecs.destroy(id) queues the entity for end-of-tick destruction.
func (e *Engine) destroy(L *lua.LState) int {
	e.current(L).MarkForDestruction(entityArg(L, 1))
	return 0
}

func (e *Engine) logMessage(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

// --- Lua helpers ---

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// lStrings reads an array of strings from a Lua table field.
func lStrings(t *lua.LTable, key string) []string {
	arr, ok := t.RawGetString(key).(*lua.LTable)
	if !ok {
		return nil
	}
	out := make([]string, 0, arr.Len())
	for i := 1; i <= arr.Len(); i++ {
		if s := lua.LVAsString(arr.RawGetInt(i)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
