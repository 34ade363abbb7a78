package persist

import (
	"context"
	"fmt"
)

// WorldReport is one periodic summary of the demo world.
type WorldReport struct {
	Tick        uint64
	Entities    int
	Tables      int
	Living      int
	Hostile     int
	Spawned     int
	Expired     int
	TargetsLost int
	Weakest     []string
}

type ReportRepo struct {
	store *Store
}

func NewReportRepo(store *Store) *ReportRepo {
	return &ReportRepo{store: store}
}

// SaveBatch writes reports in a single transaction.
func (r *ReportRepo) SaveBatch(ctx context.Context, reports []WorldReport) error {
	tx, err := r.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("report begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rep := range reports {
		weakest := rep.Weakest
		if weakest == nil {
			weakest = []string{}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO world_reports (tick, entities, tables, living, hostile, spawned, expired, targets_lost, weakest)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			int64(rep.Tick), rep.Entities, rep.Tables, rep.Living, rep.Hostile,
			rep.Spawned, rep.Expired, rep.TargetsLost, weakest,
		); err != nil {
			return fmt.Errorf("report insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Latest returns the most recent n reports, newest first.
func (r *ReportRepo) Latest(ctx context.Context, n int) ([]WorldReport, error) {
	rows, err := r.store.pool.Query(ctx,
		`SELECT tick, entities, tables, living, hostile, spawned, expired, targets_lost, weakest
		 FROM world_reports ORDER BY tick DESC, id DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("report query: %w", err)
	}
	defer rows.Close()

	var out []WorldReport
	for rows.Next() {
		var rep WorldReport
		var tick int64
		if err := rows.Scan(&tick, &rep.Entities, &rep.Tables, &rep.Living, &rep.Hostile,
			&rep.Spawned, &rep.Expired, &rep.TargetsLost, &rep.Weakest); err != nil {
			return nil, fmt.Errorf("report scan: %w", err)
		}
		rep.Tick = uint64(tick)
		out = append(out, rep)
	}
	return out, rows.Err()
}
