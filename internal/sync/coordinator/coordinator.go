// Package coordinator runs the background scheduling loop that
// periodically checks whether a synchronization run is due.
package coordinator

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/turireg/apartment-catalog-server/internal/logger"
	pkgsync "github.com/turireg/apartment-catalog-server/internal/sync"
)

const (
	// basePollingInterval is the base interval at which the coordinator
	// checks for due sync runs
	basePollingInterval = 2 * time.Minute

	// pollingJitter is the maximum random offset (±30 seconds) applied to
	// the polling interval
	pollingJitter = 30 * time.Second
)

// Coordinator manages background synchronization scheduling
type Coordinator interface {
	// Start begins the background check loop. Blocks until the context is
	// cancelled.
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator
	Stop() error
}

// defaultCoordinator is the default Coordinator implementation
type defaultCoordinator struct {
	manager pkgsync.Manager

	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates a coordinator around the given sync manager
func New(manager pkgsync.Manager) Coordinator {
	return &defaultCoordinator{
		manager: manager,
		done:    make(chan struct{}),
	}
}

// calculatePollingInterval returns the base polling interval with a
// random jitter applied, so multiple instances sharing a database do
// not check simultaneously.
func calculatePollingInterval() time.Duration {
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	jitterOffset := time.Duration(rand.Int64N(int64(2*pollingJitter))) - pollingJitter
	return basePollingInterval + jitterOffset
}

// Start begins the background check loop
func (c *defaultCoordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		close(c.done)
		logger.Info("Sync coordinator shut down")
	}()

	pollingInterval := calculatePollingInterval()
	logger.Infof("Starting sync coordinator (check interval %s)", pollingInterval)

	ticker := time.NewTicker(pollingInterval)
	defer ticker.Stop()

	// Initial check without waiting for the first tick
	pkgsync.FireAndForget(coordCtx, c.manager)

	for {
		select {
		case <-ticker.C:
			pkgsync.FireAndForget(coordCtx, c.manager)

			// Recalculate interval with new jitter for next iteration
			ticker.Reset(calculatePollingInterval())
		case <-coordCtx.Done():
			logger.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		c.cancelFunc()
		<-c.done
	}
	return nil
}
