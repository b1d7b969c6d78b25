package sync

import (
	"context"
	"errors"

	"github.com/turireg/apartment-catalog-server/internal/logger"
)

// FireAndForget triggers a best-effort sync that never propagates
// errors to the caller. Request-path and scheduler triggers use it so a
// failing source can never break the surface that triggered the sync;
// the outcome still lands in the run history and the log.
func FireAndForget(ctx context.Context, m Manager) {
	run, err := m.MaybeRun(ctx)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		logger.Debugf("Sync trigger skipped: already running")
	case err != nil:
		logger.Warnf("Background sync trigger failed: %v", err)
	case run != nil:
		logger.Infof("Background sync run %s finished: succeeded=%v", run.ID, run.Succeeded)
	}
}
