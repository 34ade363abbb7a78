package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/ecscore/internal/config"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	coresys "github.com/l1jgo/ecscore/internal/core/system"
	"github.com/l1jgo/ecscore/internal/data"
	"github.com/l1jgo/ecscore/internal/persist"
	"github.com/l1jgo/ecscore/internal/scripting"
	"github.com/l1jgo/ecscore/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

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
	// 1. Load config; a missing file means defaults
	cfgPath := "config/ecs.toml"
	if p := os.Getenv("ECSCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = config.Defaults()
	case err != nil:
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Prefabs
	printSection("Data")
	prefabs := data.DefaultPrefabTable()
	if cfg.Demo.Prefabs != "" {
		if prefabs, err = data.LoadPrefabTable(cfg.Demo.Prefabs); err != nil {
			return fmt.Errorf("prefabs: %w", err)
		}
	}
	printStat("prefabs", prefabs.Count())

	engine, err := scripting.NewEngine(cfg.Demo.Scripts, log)
	if err != nil {
		return fmt.Errorf("scripts: %w", err)
	}
	defer engine.Close()
	printOK("lua formulas loaded")
	fmt.Println()

	// 4. World and schedules
	printSection("World")
	w := ecs.NewWorld(append(ecs.OptionsFromConfig(cfg.World), ecs.WithLogger(log))...)
	schedOpts, err := coresys.OptionsFromConfig(cfg.Schedule)
	if err != nil {
		return fmt.Errorf("schedule options: %w", err)
	}
	runner := coresys.NewRunner(log, schedOpts...)
	system.Install(w, runner, prefabs, cfg.Demo)
	ecs.InsertResource(w, engine)
	if err := runner.Initialize(w); err != nil {
		return fmt.Errorf("build schedules: %w", err)
	}
	defer runner.Close()
	for p := coresys.PhaseFirst; p <= coresys.PhaseLast; p++ {
		printStat(p.String()+" systems", runner.Schedule(p).Len())
	}
	printOK("schedules built")
	fmt.Println()

	// 5. Report sink
	if cfg.Reports.DSN != "" {
		printSection("Reports")
		ctx := context.Background()
		store, err := persist.OpenStore(ctx, cfg.Reports, log)
		if err != nil {
			return fmt.Errorf("report store: %w", err)
		}
		defer store.Close()
		version, err := store.RunMigrations(ctx)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printStat("schema version", int(version))
		repo := persist.NewReportRepo(store)
		if last, err := repo.Latest(ctx, 1); err != nil {
			log.Warn("read last report", zap.Error(err))
		} else if len(last) > 0 {
			log.Info("previous run", zap.Uint64("last_tick", last[0].Tick), zap.Int("entities", last[0].Entities))
		}
		writer := persist.NewReportWriter(repo, log, cfg.Reports.QueueSize)
		defer writer.Close()
		ecs.InsertResource[system.ReportSink](w, writer)
		printOK("reports persisted")
		fmt.Println()
	}

	// 6. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Demo.TickRate)
	defer ticker.Stop()

	printSection("Running")
	printReady(fmt.Sprintf("tick rate %s", cfg.Demo.TickRate))
	fmt.Println()

	ticks := 0
	for {
		select {
		case <-ticker.C:
			runner.Tick(w, cfg.Demo.TickRate)
			ticks++
			if cfg.Demo.MaxTicks > 0 && ticks >= cfg.Demo.MaxTicks {
				log.Info("tick limit reached", zap.Int("ticks", ticks), zap.Int("entities", w.Len()))
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()), zap.Int("ticks", ticks))
			return nil
		}
	}
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
