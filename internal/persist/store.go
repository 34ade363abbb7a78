package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/l1jgo/ecscore/internal/config"
	"go.uber.org/zap"
)

// Store holds the Postgres pool world reports are written through.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// reportPoolConfig sizes the pool for report traffic: one batch writer plus
// the read of the last report at startup. Connections idle between batches
// are dropped.
func reportPoolConfig(cfg config.ReportsConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(max(cfg.PoolSize, 1))
	poolCfg.MinConns = 0
	poolCfg.MaxConnIdleTime = time.Minute
	if cfg.AppName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	}
	return poolCfg, nil
}

// OpenStore connects to the report database and pings it within
// cfg.ConnectTimeout.
func OpenStore(ctx context.Context, cfg config.ReportsConfig, log *zap.Logger) (*Store, error) {
	poolCfg, err := reportPoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open report pool: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping report store: %w", err)
	}

	log.Info("report store connected",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.String("application_name", cfg.AppName),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}
