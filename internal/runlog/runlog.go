// Package runlog records the outcome of synchronization runs. The run
// history is append-only: a SyncRun is built up in memory while the run
// executes and persisted exactly once when it finalizes.
package runlog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncRun is the persisted outcome of one synchronization run
type SyncRun struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time

	// RecordsSeen counts records that passed normalization, whether they
	// ended up created or updated
	RecordsSeen    int
	RecordsCreated int
	RecordsUpdated int

	// ErrorCount counts per-record failures plus any page-level failure
	ErrorCount int

	// Succeeded is false when a page-level failure aborted the run early.
	// Progress committed before the failure is retained either way.
	Succeeded bool

	LogLines []string
}

// New creates a SyncRun marking the start of a run
func New() *SyncRun {
	return &SyncRun{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC(),
	}
}

// Logf appends a timestamped line to the run's log
func (r *SyncRun) Logf(format string, args ...any) {
	line := fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	r.LogLines = append(r.LogLines, line)
}

// Finalize stamps the end of the run
func (r *SyncRun) Finalize(succeeded bool) {
	r.FinishedAt = time.Now().UTC()
	r.Succeeded = succeeded
}
