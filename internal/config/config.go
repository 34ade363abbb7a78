package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	World    WorldConfig    `toml:"world"`
	Schedule ScheduleConfig `toml:"schedule"`
	Logging  LoggingConfig  `toml:"logging"`
	Reports  ReportsConfig  `toml:"reports"`
	Demo     DemoConfig     `toml:"demo"`
}

type WorldConfig struct {
	EntityCapacity    int `toml:"entity_capacity"`
	CommandBufferSize int `toml:"command_buffer_size"` // entities each command buffer reserves
}

type ScheduleConfig struct {
	AmbiguityDetection string `toml:"ambiguity_detection"` // "ignore", "warn" or "error"
	Workers            int    `toml:"workers"`             // 0 = GOMAXPROCS
	Flush              string `toml:"flush"`               // "stage" or "end"
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// ReportsConfig points the demo's report sink at Postgres. An empty DSN
// keeps reports in the log only.
type ReportsConfig struct {
	DSN            string        `toml:"dsn"`
	PoolSize       int           `toml:"pool_size"` // one batch writer plus startup reads
	ConnectTimeout time.Duration `toml:"connect_timeout"`
	QueueSize      int           `toml:"queue_size"` // reports buffered before new ones are dropped
	AppName        string        `toml:"application_name"`
}

type DemoConfig struct {
	TickRate    time.Duration `toml:"tick_rate"`
	MaxTicks    int           `toml:"max_ticks"`    // 0 = until signalled
	Prefabs     string        `toml:"prefabs"`      // YAML prefab file, empty for the built-in set
	Seed        uint64        `toml:"seed"`
	ReportEvery int           `toml:"report_every"` // ticks between stat reports, 0 = off
	Scripts     string        `toml:"scripts"`      // directory of .lua overrides, empty for the built-ins
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Schedule.AmbiguityDetection {
	case "ignore", "warn", "error":
	default:
		return fmt.Errorf("schedule.ambiguity_detection: unknown level %q", c.Schedule.AmbiguityDetection)
	}
	switch c.Schedule.Flush {
	case "stage", "end":
	default:
		return fmt.Errorf("schedule.flush: unknown mode %q", c.Schedule.Flush)
	}
	if c.World.CommandBufferSize < 0 {
		return fmt.Errorf("world.command_buffer_size: must not be negative")
	}
	if c.Demo.ReportEvery < 0 {
		return fmt.Errorf("demo.report_every: must not be negative")
	}
	if c.Reports.DSN != "" && c.Reports.PoolSize < 1 {
		return fmt.Errorf("reports.pool_size: need at least one connection")
	}
	if c.Reports.QueueSize < 1 {
		return fmt.Errorf("reports.queue_size: must be positive")
	}
	if c.Schedule.Workers < 0 {
		return fmt.Errorf("schedule.workers: must not be negative")
	}
	return nil
}

func Defaults() *Config {
	return &Config{
		World: WorldConfig{
			EntityCapacity:    1024,
			CommandBufferSize: 16,
		},
		Schedule: ScheduleConfig{
			AmbiguityDetection: "warn",
			Workers:            0,
			Flush:              "stage",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Reports: ReportsConfig{
			PoolSize:       2,
			ConnectTimeout: 5 * time.Second,
			QueueSize:      64,
			AppName:        "ecsdemo-reports",
		},
		Demo: DemoConfig{
			TickRate:    200 * time.Millisecond,
			MaxTicks:    0,
			Seed:        1,
			ReportEvery: 25,
		},
	}
}
