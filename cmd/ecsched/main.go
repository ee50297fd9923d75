package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/ecsched/internal/config"
	"github.com/l1jgo/ecsched/internal/core/ecs"
	"github.com/l1jgo/ecsched/internal/core/runner"
	"github.com/l1jgo/ecsched/internal/core/scheduler"
	coresys "github.com/l1jgo/ecsched/internal/core/system"
	"github.com/l1jgo/ecsched/internal/data"
	"github.com/l1jgo/ecsched/internal/scripting"
	"github.com/l1jgo/ecsched/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(worldID string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              ecsched  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       entity systems · task scheduler     \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mworld:\033[0m \033[90m%s\033[0m\n\n", worldID)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := config.Path("config/ecsched.toml")
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Defaults(), nil
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Worker pool and world
	pool := runner.NewParallelRunner(cfg.Runner.DegreeOfParallelism, runner.WithLogger(log))
	defer pool.Wait()
	defer pool.Close()

	world := ecs.NewWorld()
	world.SetRunner(pool)
	coresys.LibraryOf(world).SetLogger(log)
	log = log.With(zap.Stringer("world", world.ID()))

	printBanner(world.ID().String())
	printSection("world")
	printStat("workers", pool.DegreeOfParallelism())

	// 4. Spawn table
	spawned, err := spawnWorld(world, cfg.World.SpawnList, log)
	if err != nil {
		return err
	}
	printStat("entities", spawned)

	// 5. Script systems
	engine := scripting.NewEngine(log)
	defer engine.Close()
	bindComponents(engine)
	if err := engine.Load(cfg.World.ScriptsDir); err != nil {
		return fmt.Errorf("scripts: %w", err)
	}
	printStat("lua systems", len(engine.Systems()))
	fmt.Println()

	// 6. Register chains: gameplay, then scripts, then cleanup.
	sched := scheduler.New(scheduler.WithLogger(log))
	handles, err := registerChains(world, sched, []coresys.Chain{
		system.Gameplay(log),
		engine.Chain(),
		system.Cleanup(log),
	})
	if err != nil {
		return fmt.Errorf("register systems: %w", err)
	}
	defer func() {
		if err := disposeChains(handles, sched); err != nil {
			log.Warn("dispose systems", zap.Error(err))
		}
	}()
	printSection("scheduler")
	printStat("nodes", sched.NodeCount())
	printOK("systems registered")
	fmt.Println()

	// 7. Start tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Scheduler.TickRate)
	defer ticker.Stop()

	printReady(fmt.Sprintf("tick loop started (tick: %s, concurrent: %t)",
		cfg.Scheduler.TickRate, cfg.Scheduler.ConcurrentBranches))
	fmt.Println()

	const statsInterval = 25
	ticks := 0
	for {
		select {
		case <-ticker.C:
			start := time.Now()
			if err := tick(sched, cfg.Scheduler); err != nil {
				log.Debug("tick failures", zap.Int("tick", ticks), zap.Error(err))
			}
			ticks++
			if ticks%statsInterval == 0 {
				log.Info("tick stats",
					zap.Int("tick", ticks),
					zap.Int("alive", world.Len()),
					zap.Int("pending_jobs", pool.Pending()),
					zap.Duration("last_tick", time.Since(start)),
				)
			}
			if cfg.Scheduler.MaxTicks > 0 && ticks >= cfg.Scheduler.MaxTicks {
				log.Info("tick limit reached", zap.Int("ticks", ticks), zap.Int("alive", world.Len()))
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			return nil
		}
	}
}

func tick(s *scheduler.Scheduler, cfg config.SchedulerConfig) error {
	if cfg.ConcurrentBranches {
		return s.TickConcurrent(cfg.MaxConcurrentBranches)
	}
	return s.Tick()
}

// registerChains registers each chain after the previous one.
func registerChains(w *ecs.World, s *scheduler.Scheduler, chains []coresys.Chain) ([]*coresys.ChainHandle, error) {
	handles := make([]*coresys.ChainHandle, 0, len(chains))
	var prev *scheduler.Node
	for _, c := range chains {
		h, err := c.RegisterTo(w, s, prev)
		if err != nil {
			return nil, multierr.Append(err, disposeChains(handles, nil))
		}
		handles = append(handles, h)
		prev = h.Node()
	}
	return handles, nil
}

func disposeChains(handles []*coresys.ChainHandle, s *scheduler.Scheduler) error {
	var err error
	for i := len(handles) - 1; i >= 0; i-- {
		err = multierr.Append(err, handles[i].Dispose())
	}
	if s != nil {
		err = multierr.Append(err, s.Dispose())
	}
	return err
}

func spawnWorld(w *ecs.World, path string, log *zap.Logger) (int, error) {
	table, err := data.LoadSpawnTable(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("spawn list not found, world starts empty", zap.String("path", path))
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	ids, err := table.Spawn(w)
	if err != nil {
		return len(ids), err
	}
	return len(ids), nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
