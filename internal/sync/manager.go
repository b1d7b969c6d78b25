// Package sync orchestrates catalog synchronization runs: it decides
// whether a run is due, guards against concurrent execution through the
// sync lock, drives the fetch/normalize/upsert pipeline page by page,
// invokes the geocode backfill, and records every outcome in the run
// history.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/turireg/apartment-catalog-server/internal/catalog"
	"github.com/turireg/apartment-catalog-server/internal/geocode"
	"github.com/turireg/apartment-catalog-server/internal/logger"
	"github.com/turireg/apartment-catalog-server/internal/normalizer"
	"github.com/turireg/apartment-catalog-server/internal/remote"
	"github.com/turireg/apartment-catalog-server/internal/runlog"
	"github.com/turireg/apartment-catalog-server/internal/synclock"
)

// ErrAlreadyRunning is returned when a trigger finds the lock held by a
// live run. It is a no-op condition for automatic triggers, not a
// failure surfaced to end users.
var ErrAlreadyRunning = errors.New("sync already running")

// Sync reason constants
const (
	ReasonAlreadyInProgress  = "sync-already-in-progress"
	ReasonNeverSynced        = "never-synced"
	ReasonDue                = "sync-interval-elapsed"
	ReasonNotDue             = "sync-interval-not-elapsed"
	ReasonManual             = "manual-sync-requested"
	ReasonErrorCheckingState = "error-checking-sync-state"
)

// Status is the orchestrator state reported to admin/automation callers
type Status struct {
	Locked          bool
	LockAcquiredAt  *time.Time
	LockStale       bool
	LastRunFinished *time.Time
	Due             bool
	Reason          string
}

// Manager is the synchronization orchestrator
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks -source=manager.go Manager
type Manager interface {
	// ShouldSync determines if a sync run is needed, returning the decision
	// and a reason constant
	ShouldSync(ctx context.Context) (bool, string)

	// MaybeRun starts a run when one is due and the lock is free. It
	// returns (nil, nil) when no run is due, and ErrAlreadyRunning when
	// the lock is held by a live run.
	MaybeRun(ctx context.Context) (*runlog.SyncRun, error)

	// ForceRun bypasses the interval check but still respects the lock
	ForceRun(ctx context.Context) (*runlog.SyncRun, error)

	// Status reports the current lock state, last run time, and whether a
	// run is due
	Status(ctx context.Context) (*Status, error)
}

// Config holds the orchestrator tuning knobs
type Config struct {
	// PageSize is the number of records fetched per page
	PageSize int

	// ProgressStep is how many records to process between progress log lines
	ProgressStep int

	// Interval is the minimum time between automatic runs
	Interval time.Duration

	// AnchorTime is the HH:MM wall-clock time the source updates daily;
	// empty disables anchoring and uses the plain interval
	AnchorTime string
}

// defaultManager is the default Manager implementation
type defaultManager struct {
	remote   remote.Client
	repo     catalog.Repository
	runs     runlog.Store
	lock     synclock.Service
	backfill *geocode.Backfill
	schedule *schedule

	pageSize     int
	progressStep int
	now          func() time.Time
}

// NewManager creates the synchronization orchestrator
func NewManager(
	remoteClient remote.Client,
	repo catalog.Repository,
	runs runlog.Store,
	lock synclock.Service,
	backfill *geocode.Backfill,
	cfg Config,
) (Manager, error) {
	if remoteClient == nil || repo == nil || runs == nil || lock == nil || backfill == nil {
		return nil, fmt.Errorf("all orchestrator dependencies are required")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive")
	}

	sched, err := newSchedule(cfg.Interval, cfg.AnchorTime)
	if err != nil {
		return nil, err
	}

	progressStep := cfg.ProgressStep
	if progressStep <= 0 {
		progressStep = 50
	}

	return &defaultManager{
		remote:       remoteClient,
		repo:         repo,
		runs:         runs,
		lock:         lock,
		backfill:     backfill,
		schedule:     sched,
		pageSize:     cfg.PageSize,
		progressStep: progressStep,
		now:          time.Now,
	}, nil
}

// ShouldSync determines if a sync run is needed
func (m *defaultManager) ShouldSync(ctx context.Context) (bool, string) {
	lock, err := m.lock.Current(ctx)
	if err != nil {
		logger.Errorf("Failed to read sync lock state: %v", err)
		return false, ReasonErrorCheckingState
	}
	if lock != nil && !m.lock.IsStale(lock) {
		return false, ReasonAlreadyInProgress
	}

	last, err := m.runs.LastFinished(ctx)
	if err != nil {
		logger.Errorf("Failed to read last sync run: %v", err)
		return false, ReasonErrorCheckingState
	}
	if last == nil {
		return true, ReasonNeverSynced
	}
	if m.schedule.due(m.now(), *last) {
		return true, ReasonDue
	}
	return false, ReasonNotDue
}

// MaybeRun starts a run when one is due and the lock is free
func (m *defaultManager) MaybeRun(ctx context.Context) (*runlog.SyncRun, error) {
	should, reason := m.ShouldSync(ctx)
	logger.Debugf("Sync check: shouldSync=%v, reason=%s", should, reason)
	if !should {
		if reason == ReasonAlreadyInProgress {
			return nil, ErrAlreadyRunning
		}
		return nil, nil
	}
	return m.run(ctx, reason)
}

// ForceRun bypasses the interval check but still respects the lock
func (m *defaultManager) ForceRun(ctx context.Context) (*runlog.SyncRun, error) {
	return m.run(ctx, ReasonManual)
}

// Status reports the current orchestrator state
func (m *defaultManager) Status(ctx context.Context) (*Status, error) {
	lock, err := m.lock.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync lock state: %w", err)
	}

	last, err := m.runs.LastFinished(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read last sync run: %w", err)
	}

	status := &Status{
		LastRunFinished: last,
	}
	if lock != nil {
		status.Locked = true
		acquiredAt := lock.AcquiredAt
		status.LockAcquiredAt = &acquiredAt
		status.LockStale = m.lock.IsStale(lock)
	}
	status.Due, status.Reason = m.ShouldSync(ctx)
	return status, nil
}

// run executes one full synchronization under the lock. The returned
// SyncRun carries the outcome; a nil error does not imply the run
// succeeded, only that it executed and was recorded.
func (m *defaultManager) run(ctx context.Context, reason string) (*runlog.SyncRun, error) {
	acquired, err := m.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !acquired {
		return nil, ErrAlreadyRunning
	}

	// Lock release is unconditional on every exit path
	defer func() {
		if err := m.lock.Release(ctx); err != nil {
			logger.Errorf("Failed to release sync lock: %v", err)
		}
	}()

	run := runlog.New()
	run.Logf("sync started (%s)", reason)
	logger.Infof("Starting sync run %s (%s)", run.ID, reason)

	failed := !m.processAllPages(ctx, run)

	if !failed {
		updated, err := m.backfill.BackfillMissingCoordinates(ctx)
		if err != nil {
			run.ErrorCount++
			run.Logf("geocode backfill failed: %v", err)
			logger.Errorf("Geocode backfill failed: %v", err)
		} else {
			run.Logf("geocode backfill updated %d records", updated)
		}
	}

	run.Finalize(!failed)
	run.Logf("sync finished: seen=%d created=%d updated=%d errors=%d",
		run.RecordsSeen, run.RecordsCreated, run.RecordsUpdated, run.ErrorCount)

	if err := m.runs.Insert(ctx, run); err != nil {
		logger.Errorf("Failed to persist sync run %s: %v", run.ID, err)
	}

	logger.Infof("Sync run %s finished: succeeded=%v seen=%d created=%d updated=%d errors=%d",
		run.ID, run.Succeeded, run.RecordsSeen, run.RecordsCreated, run.RecordsUpdated, run.ErrorCount)

	return run, nil
}

// processAllPages walks the remote dataset page by page. It returns
// false when a page-level failure aborted the walk; per-record failures
// only increment the run's error counter.
func (m *defaultManager) processAllPages(ctx context.Context, run *runlog.SyncRun) bool {
	offset := 0
	total := -1

	for {
		page, err := m.remote.FetchPage(ctx, m.pageSize, offset)
		if err != nil {
			run.ErrorCount++
			run.Logf("page fetch failed at offset %d: %v", offset, err)
			logger.Errorf("Page fetch failed at offset %d: %v", offset, err)
			return false
		}

		if total < 0 {
			total = page.TotalCount
			run.Logf("remote reports %d records", total)
		}

		for _, raw := range page.Records {
			m.processRecord(ctx, run, raw, total)
		}

		offset += m.pageSize
		if offset >= total {
			return true
		}
	}
}

// processRecord runs one raw record through normalize -> classify ->
// upsert. Failures are counted and skipped; they never abort the batch.
func (m *defaultManager) processRecord(ctx context.Context, run *runlog.SyncRun, raw remote.RawRecord, total int) {
	apt, err := normalizer.Normalize(raw)
	if err != nil {
		run.ErrorCount++
		run.Logf("record normalization failed: %v", err)
		return
	}
	if apt == nil {
		// No usable natural key: skipped, not an error
		return
	}

	run.RecordsSeen++

	// Pre-upsert lookup classifies the outcome for reporting only; the
	// upsert itself is keyed by the natural key either way.
	existing, err := m.repo.FindByNaturalKey(ctx, apt.NaturalKey)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		run.ErrorCount++
		run.Logf("lookup failed for %s: %v", apt.NaturalKey, err)
		return
	}

	if err := m.repo.Upsert(ctx, apt); err != nil {
		run.ErrorCount++
		run.Logf("upsert failed for %s: %v", apt.NaturalKey, err)
		return
	}

	if existing == nil {
		run.RecordsCreated++
	} else {
		run.RecordsUpdated++
	}

	if run.RecordsSeen%m.progressStep == 0 {
		run.Logf("processed %d/%d records", run.RecordsSeen, total)
	}
}
