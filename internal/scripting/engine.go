package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/ecsched/internal/core/ecs"
	coresys "github.com/l1jgo/ecsched/internal/core/system"
)

// Engine wraps a single gopher-lua VM whose scripts declare systems. Script
// systems may be scheduled on concurrent branches; every entry into the VM
// holds mu, so they run one at a time.
type Engine struct {
	mu         sync.Mutex
	vm         *lua.LState
	log        *zap.Logger
	components map[string]*binding
	defs       []*definition
	byName     map[string]*definition

	// world is set while a script callback runs, under mu.
	world *ecs.World
}

// NewEngine creates a Lua VM with the ecs module installed. Components must be
// bound before loading scripts that reference them.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{
		vm:         vm,
		log:        log,
		components: make(map[string]*binding),
		byName:     make(map[string]*definition),
	}
	vm.PreloadModule("ecs", e.loader)
	vm.SetGlobal("ecs", e.module(vm))
	return e
}

// Load loads scriptsDir/core, then scriptsDir/systems.
func (e *Engine) Load(scriptsDir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sub := range []string{"core", "systems"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			return fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	e.log.Info("lua systems loaded", zap.Int("systems", len(e.defs)))
	return nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.DoString(src)
}

// Systems returns the names of the declared systems in declaration order.
func (e *Engine) Systems() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(e.defs))
	for i, d := range e.defs {
		names[i] = d.name
	}
	return names
}

// Chain returns one entry per declared system. Script systems are keyed by
// coresys.FuncID(name), so their after/before lists may name each other or
// callback systems.
func (e *Engine) Chain() coresys.Chain {
	e.mu.Lock()
	defer e.mu.Unlock()
	var c coresys.Chain
	for _, def := range e.defs {
		opts := make([]coresys.Option, 0, 2)
		for _, n := range def.after {
			opts = append(opts, coresys.After(coresys.FuncID(n)))
		}
		for _, n := range def.before {
			opts = append(opts, coresys.Before(coresys.FuncID(n)))
		}
		c = c.Add(coresys.New(coresys.FuncID(def.name), func() coresys.System {
			return &luaSystem{engine: e, def: def}
		}, opts...))
	}
	return c
}

// call runs fn with w exposed to the ecs module. Script errors are logged,
// never propagated: one broken script must not stop the tick.
func (e *Engine) call(w *ecs.World, system string, fn *lua.LFunction, args ...lua.LValue) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.world = w
	defer func() { e.world = nil }()
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua system error", zap.String("system", system), zap.Error(err))
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
