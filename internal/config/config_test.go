package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[world]
command_buffer_size = 64

[schedule]
ambiguity_detection = "error"
workers = 4

[demo]
tick_rate = "50ms"
max_ticks = 10
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.World.CommandBufferSize != 64 {
		t.Errorf("command_buffer_size = %d, want 64", cfg.World.CommandBufferSize)
	}
	if cfg.World.EntityCapacity != 1024 {
		t.Errorf("entity_capacity = %d, want default 1024", cfg.World.EntityCapacity)
	}
	if cfg.Schedule.AmbiguityDetection != "error" || cfg.Schedule.Workers != 4 {
		t.Errorf("schedule = %+v", cfg.Schedule)
	}
	if cfg.Schedule.Flush != "stage" {
		t.Errorf("flush = %q, want default stage", cfg.Schedule.Flush)
	}
	if cfg.Demo.TickRate != 50*time.Millisecond || cfg.Demo.MaxTicks != 10 {
		t.Errorf("demo = %+v", cfg.Demo)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging.level = %q, want info", cfg.Logging.Level)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ambiguity", "[schedule]\nambiguity_detection = \"loud\"\n", "ambiguity_detection"},
		{"flush", "[schedule]\nflush = \"never\"\n", "flush"},
		{"buffer", "[world]\ncommand_buffer_size = -1\n", "command_buffer_size"},
		{"workers", "[schedule]\nworkers = -2\n", "workers"},
		{"report", "[demo]\nreport_every = -1\n", "report_every"},
		{"pool", "[reports]\ndsn = \"postgres://localhost/ecs\"\npool_size = 0\n", "pool_size"},
		{"queue", "[reports]\nqueue_size = 0\n", "queue_size"},
		{"syntax", "[world\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecs.toml")
	if err := os.WriteFile(path, []byte("[logging]\nformat = \"json\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("format = %q, want json", cfg.Logging.Format)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}
