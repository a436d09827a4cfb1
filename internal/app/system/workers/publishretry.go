// internal/app/system/workers/publishretry.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/civicworks/eventgate/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// PendingRetrier settles requests whose downstream publish is still owed.
type PendingRetrier interface {
	RetryAllPending(ctx context.Context, limit int64) (int, error)
}

// PublishRetry is a background worker that sweeps approved requests with a
// deferred publish and retries them until the downstream event exists.
type PublishRetry struct {
	flow     PendingRetrier
	log      *zap.Logger
	interval time.Duration
	batch    int64
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewPublishRetry creates a publish retry worker.
//
// Parameters:
//   - flow: the workflow service that owns the retry semantics
//   - logger: zap logger for logging
//   - interval: how often to sweep (e.g., 30 seconds)
//   - batch: max requests settled per sweep
func NewPublishRetry(flow PendingRetrier, logger *zap.Logger, interval time.Duration, batch int64) *PublishRetry {
	return &PublishRetry{
		flow:     flow,
		log:      logger,
		interval: interval,
		batch:    batch,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *PublishRetry) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("publish retry worker started",
		zap.Duration("interval", w.interval),
		zap.Int64("batch", w.batch))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *PublishRetry) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("publish retry worker stopped")
}

func (w *PublishRetry) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *PublishRetry) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Batch())
	defer cancel()

	settled, err := w.flow.RetryAllPending(ctx, w.batch)
	if err != nil {
		w.log.Error("publish retry sweep failed", zap.Error(err))
		return
	}
	if settled > 0 {
		w.log.Info("publish retry sweep settled requests", zap.Int("count", settled))
	}
}
