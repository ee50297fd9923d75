package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/l1jgo/ecsched/internal/core/ecs"
	"github.com/l1jgo/ecsched/internal/core/scheduler"
)

type health struct{ HP, MaxHP int32 }

func newEngine(t *testing.T) (*Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	e := NewEngine(zap.New(core))
	t.Cleanup(e.Close)
	Bind(e, "health", map[string]Field[health]{
		"hp": {
			Get: func(h *health) float64 { return float64(h.HP) },
			Set: func(h *health, v float64) { h.HP = int32(v) },
		},
		"max_hp": {
			Get: func(h *health) float64 { return float64(h.MaxHP) },
		},
	})
	return e, logs
}

func TestScriptSystemRunsPerEntity(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.DoString(`
local ecs = require("ecs")
ticks = 0
ecs.register_system{
  name = "bleed",
  requires = {"health"},
  before_tick = function() ticks = ticks + 1 end,
  execute = function(id)
    local hp = ecs.get(id, "health", "hp") - 3
    ecs.set(id, "health", "hp", hp)
    if hp <= 0 then ecs.destroy(id) end
  end,
}
`))
	assert.Equal(t, []string{"bleed"}, e.Systems())

	w := ecs.NewWorld()
	a := w.CreateEntity()
	h, _ := ecs.Add(w, a, health{HP: 5, MaxHP: 10})
	b := w.CreateEntity()

	s := scheduler.New()
	_, err := e.Chain().RegisterTo(w, s)
	require.NoError(t, err)

	require.NoError(t, s.Tick())
	assert.Equal(t, int32(2), h.HP)
	assert.Zero(t, w.PendingDestruction())

	require.NoError(t, s.Tick())
	assert.Equal(t, 1, w.FlushDestroyQueue())
	assert.False(t, w.Alive(a))
	assert.True(t, w.Alive(b))
	assert.Equal(t, lua.LNumber(2), e.vm.GetGlobal("ticks"))
}

func TestScriptSystemsOrderByName(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.DoString(`
order = {}
ecs.register_system{ name = "second", after = {"first"},
  before_tick = function() table.insert(order, "second") end }
ecs.register_system{ name = "first",
  before_tick = function() table.insert(order, "first") end }
`))
	w := ecs.NewWorld()
	s := scheduler.New()
	_, err := e.Chain().RegisterTo(w, s)
	require.NoError(t, err)
	require.NoError(t, s.Tick())

	require.NoError(t, e.DoString(`assert(order[1] == "first" and order[2] == "second")`))
}

func TestRegisterSystemValidates(t *testing.T) {
	e, _ := newEngine(t)
	assert.Error(t, e.DoString(`ecs.register_system{ requires = {"health"} }`))
	assert.ErrorContains(t, e.DoString(`ecs.register_system{ name = "x", requires = {"mana"} }`), "unknown component mana")
	require.NoError(t, e.DoString(`ecs.register_system{ name = "x" }`))
	assert.ErrorContains(t, e.DoString(`ecs.register_system{ name = "x" }`), "already declared")
	assert.ErrorContains(t, e.DoString(`ecs.get(1, "health", "hp")`), "outside a system")
}

func TestScriptErrorsAreLoggedNotPropagated(t *testing.T) {
	e, logs := newEngine(t)
	require.NoError(t, e.DoString(`
ecs.register_system{ name = "broken", requires = {"health"},
  execute = function(id) error("boom") end }
`))
	w := ecs.NewWorld()
	id := w.CreateEntity()
	_, _ = ecs.Add(w, id, health{HP: 1})

	s := scheduler.New()
	_, err := e.Chain().RegisterTo(w, s)
	require.NoError(t, err)
	require.NoError(t, s.Tick())
	assert.Equal(t, 1, logs.FilterMessage("lua system error").Len())
}

func TestLoadReadsSystemsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "systems"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "systems", "a.lua"),
		[]byte(`ecs.register_system{ name = "from_file" }`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "systems", "notes.txt"), []byte("skip"), 0o644))

	e, logs := newEngine(t)
	require.NoError(t, e.Load(dir))
	assert.Equal(t, []string{"from_file"}, e.Systems())
	assert.Equal(t, 1, logs.FilterMessage("loaded lua script").Len())
}

func TestScriptSystemsOnConcurrentBranches(t *testing.T) {
	e, logs := newEngine(t)
	for i := 0; i < 8; i++ {
		require.NoError(t, e.DoString(fmt.Sprintf(`
ecs.register_system{ name = "drain_%d", requires = {"health"},
  execute = function(id)
    ecs.set(id, "health", "hp", ecs.get(id, "health", "hp") - 1)
  end }
`, i)))
	}

	w := ecs.NewWorld()
	hs := make([]*health, 0, 200)
	for i := 0; i < 200; i++ {
		h, err := ecs.Add(w, w.CreateEntity(), health{HP: 1000, MaxHP: 1000})
		require.NoError(t, err)
		hs = append(hs, h)
	}

	s := scheduler.New()
	_, err := e.Chain().RegisterTo(w, s)
	require.NoError(t, err)
	for tick := 0; tick < 20; tick++ {
		require.NoError(t, s.TickConcurrent(8))
	}

	for _, h := range hs {
		require.Equal(t, int32(1000-8*20), h.HP)
	}
	assert.Zero(t, logs.FilterMessage("lua system error").Len())
}
