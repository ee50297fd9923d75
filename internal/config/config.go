package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPath overrides the config path given on the command line.
const EnvPath = "ECSCHED_CONFIG"

type Config struct {
	Runner    RunnerConfig    `toml:"runner" yaml:"runner"`
	Scheduler SchedulerConfig `toml:"scheduler" yaml:"scheduler"`
	World     WorldConfig     `toml:"world" yaml:"world"`
	Logging   LoggingConfig   `toml:"logging" yaml:"logging"`
}

type RunnerConfig struct {
	DegreeOfParallelism int `toml:"degree_of_parallelism" yaml:"degree_of_parallelism"` // <= 0 means one worker per CPU
}

type SchedulerConfig struct {
	TickRate              time.Duration `toml:"tick_rate" yaml:"tick_rate"`
	ConcurrentBranches    bool          `toml:"concurrent_branches" yaml:"concurrent_branches"`
	MaxConcurrentBranches int           `toml:"max_concurrent_branches" yaml:"max_concurrent_branches"` // <= 0 means unbounded
	MaxTicks              int           `toml:"max_ticks" yaml:"max_ticks"`                             // 0 runs until interrupted
}

type WorldConfig struct {
	SpawnList  string `toml:"spawn_list" yaml:"spawn_list"`
	ScriptsDir string `toml:"scripts_dir" yaml:"scripts_dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "json" or "console"
}

// Load reads the file at path on top of the defaults. Files ending in .yaml
// or .yml are parsed as YAML, everything else as TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the config path to use: ECSCHED_CONFIG when set, else def.
func Path(def string) string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return def
}

func (c *Config) validate() error {
	if c.Scheduler.TickRate <= 0 {
		return fmt.Errorf("scheduler.tick_rate must be positive, got %s", c.Scheduler.TickRate)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		Runner: RunnerConfig{
			DegreeOfParallelism: 0,
		},
		Scheduler: SchedulerConfig{
			TickRate:              200 * time.Millisecond,
			ConcurrentBranches:    false,
			MaxConcurrentBranches: 4,
		},
		World: WorldConfig{
			SpawnList:  "data/yaml/spawn_list.yaml",
			ScriptsDir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
