package token

import (
	"context"
	"sync"
	"time"

	"github.com/hubfold/tokend/logger"
)

// DefaultSweepInterval is how often the janitor runs the retention
// sweeps when no interval is configured.
const DefaultSweepInterval = time.Hour

// Janitor periodically runs the retention sweeps in the background
type Janitor struct {
	provider *Provider
	interval time.Duration
	log      logger.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJanitor creates a janitor for the provider. A non-positive
// interval falls back to DefaultSweepInterval.
func NewJanitor(provider *Provider, interval time.Duration, log logger.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Janitor{
		provider: provider,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop. One sweep runs immediately so a
// restart never postpones overdue cleanup by a full interval.
func (j *Janitor) Start(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		j.sweep(ctx)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				j.sweep(ctx)
			case <-j.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopCh)
	})
	j.wg.Wait()
}

func (j *Janitor) sweep(ctx context.Context) {
	start := time.Now()
	if err := j.provider.InvalidateOldTokens(ctx); err != nil {
		j.log.Error("retention sweep failed", logger.Err(err))
		return
	}
	j.log.Debug("retention sweep completed",
		logger.Duration("took", time.Since(start)))
}
