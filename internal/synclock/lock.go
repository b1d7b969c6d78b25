// Package synclock implements the process-restart-safe mutual-exclusion
// lock that guards synchronization runs.
//
// The lock is a single fixed row in the sync_lock table. Acquisition is
// one atomic INSERT ... ON CONFLICT statement, so two racing triggers
// can never both observe "no lock" and both proceed. A lock older than
// the maximum run duration belonged to a crashed run and is reclaimed
// by the same statement.
package synclock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// lockID is the fixed primary key of the single lock row
const lockID = 1

// Lock describes a held lock
type Lock struct {
	AcquiredAt time.Time
}

// Service manages the synchronization lock
type Service interface {
	// Acquire attempts to take the lock atomically. It returns false when
	// a live (non-stale) lock is already held. A stale lock is reclaimed.
	Acquire(ctx context.Context) (bool, error)

	// Release removes the lock. Safe to call when the lock is not held.
	Release(ctx context.Context) error

	// Current returns the held lock, or nil when no lock exists
	Current(ctx context.Context) (*Lock, error)

	// IsStale reports whether the given lock exceeded the maximum run
	// duration and is therefore reclaimable
	IsStale(lock *Lock) bool
}

// pgService is the PostgreSQL-backed Service implementation
type pgService struct {
	pool           *pgxpool.Pool
	maxRunDuration time.Duration
	now            func() time.Time
}

// NewPGService creates a lock service. maxRunDuration is the ceiling
// after which a held lock is treated as crashed.
func NewPGService(pool *pgxpool.Pool, maxRunDuration time.Duration) (Service, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	if maxRunDuration <= 0 {
		return nil, fmt.Errorf("max run duration must be positive")
	}
	return &pgService{
		pool:           pool,
		maxRunDuration: maxRunDuration,
		now:            time.Now,
	}, nil
}

func (s *pgService) Acquire(ctx context.Context) (bool, error) {
	staleBefore := s.now().Add(-s.maxRunDuration)

	// Single-statement check-and-set: the insert wins when no row exists,
	// the conditional update wins when the existing row is stale, and the
	// statement affects zero rows when a live lock is held.
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO sync_lock (id, acquired_at) VALUES ($1, now())
		ON CONFLICT (id) DO UPDATE SET acquired_at = now()
		WHERE sync_lock.acquired_at < $2`,
		lockID, staleBefore,
	)
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *pgService) Release(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sync_lock WHERE id = $1`, lockID)
	if err != nil {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	return nil
}

func (s *pgService) Current(ctx context.Context) (*Lock, error) {
	var acquiredAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT acquired_at FROM sync_lock WHERE id = $1`, lockID).Scan(&acquiredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query sync lock: %w", err)
	}
	return &Lock{AcquiredAt: acquiredAt}, nil
}

func (s *pgService) IsStale(lock *Lock) bool {
	if lock == nil {
		return false
	}
	return s.now().Sub(lock.AcquiredAt) > s.maxRunDuration
}
