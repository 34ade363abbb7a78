package persist

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/l1jgo/ecscore/internal/config"
	"go.uber.org/zap/zaptest"
)

func TestOpenStoreRejectsBadDSN(t *testing.T) {
	_, err := OpenStore(context.Background(), config.ReportsConfig{DSN: "postgres://%zz", PoolSize: 1}, zaptest.NewLogger(t))
	if err == nil || !strings.Contains(err.Error(), "parse dsn") {
		t.Errorf("err = %v, want a dsn parse error", err)
	}
}

func TestReportPoolConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.ReportsConfig
		maxConns int32
		appName  string
	}{
		{"sized", config.ReportsConfig{DSN: "postgres://ecs@localhost:5432/reports", PoolSize: 3, AppName: "ecsdemo-reports"}, 3, "ecsdemo-reports"},
		{"at least one connection", config.ReportsConfig{DSN: "postgres://ecs@localhost:5432/reports"}, 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := reportPoolConfig(tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			if pc.MaxConns != tt.maxConns || pc.MinConns != 0 {
				t.Errorf("conns = %d..%d, want 0..%d", pc.MinConns, pc.MaxConns, tt.maxConns)
			}
			if pc.MaxConnIdleTime != time.Minute {
				t.Errorf("idle time = %s", pc.MaxConnIdleTime)
			}
			if got := pc.ConnConfig.RuntimeParams["application_name"]; tt.appName != "" && got != tt.appName {
				t.Errorf("application_name = %q, want %q", got, tt.appName)
			}
			if pc.ConnConfig.Database != "reports" {
				t.Errorf("database = %q", pc.ConnConfig.Database)
			}
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 || !strings.HasSuffix(entries[0].Name(), "_world_reports.sql") {
		t.Errorf("embedded migrations = %v", entries)
	}
}
