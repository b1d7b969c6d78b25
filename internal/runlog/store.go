package runlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists and queries the append-only run history
type Store interface {
	// Insert appends one finalized run. Runs are never updated afterwards.
	Insert(ctx context.Context, run *SyncRun) error

	// ListRecent returns the most recent n runs, newest first
	ListRecent(ctx context.Context, n int) ([]SyncRun, error)

	// LastFinished returns the finish time of the most recent run, or nil
	// when no run has ever been recorded
	LastFinished(ctx context.Context) (*time.Time, error)
}

// pgStore is the PostgreSQL-backed Store implementation
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Store backed by the given connection pool
func NewPGStore(pool *pgxpool.Pool) (Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Insert(ctx context.Context, run *SyncRun) error {
	if run == nil {
		return fmt.Errorf("run is required")
	}
	if run.FinishedAt.IsZero() {
		return fmt.Errorf("run %s is not finalized", run.ID)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_runs (
			id, started_at, finished_at, records_seen, records_created,
			records_updated, error_count, succeeded, log_lines
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.StartedAt, run.FinishedAt, run.RecordsSeen,
		run.RecordsCreated, run.RecordsUpdated, run.ErrorCount,
		run.Succeeded, logLinesOrEmpty(run.LogLines),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run %s: %w", run.ID, err)
	}
	return nil
}

func (s *pgStore) ListRecent(ctx context.Context, n int) ([]SyncRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, finished_at, records_seen, records_created,
		       records_updated, error_count, succeeded, log_lines
		FROM sync_runs
		ORDER BY finished_at DESC
		LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var run SyncRun
		err := rows.Scan(
			&run.ID, &run.StartedAt, &run.FinishedAt, &run.RecordsSeen,
			&run.RecordsCreated, &run.RecordsUpdated, &run.ErrorCount,
			&run.Succeeded, &run.LogLines,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync run rows: %w", err)
	}
	return runs, nil
}

func (s *pgStore) LastFinished(ctx context.Context) (*time.Time, error) {
	var finished time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT finished_at FROM sync_runs ORDER BY finished_at DESC LIMIT 1`).Scan(&finished)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query last sync run: %w", err)
	}
	return &finished, nil
}

func logLinesOrEmpty(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}
