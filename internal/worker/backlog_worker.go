package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/observability"
	"github.com/maxpower-app/wallet-backend/internal/service"
)

// BacklogWorker periodically refreshes the pending-transaction gauges so the
// admin backlog is visible on dashboards without hitting the API.
type BacklogWorker struct {
	ledger   *service.LedgerService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewBacklogWorker constructs a worker with a default one-minute interval.
func NewBacklogWorker(ledger *service.LedgerService) *BacklogWorker {
	return &BacklogWorker{
		ledger:   ledger,
		interval: time.Minute,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the refresh interval.
func (w *BacklogWorker) WithInterval(interval time.Duration) *BacklogWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and refreshes the backlog gauges at the configured interval.
func (w *BacklogWorker) Start(ctx context.Context) {
	zap.L().Info("backlog worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("backlog worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("backlog worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *BacklogWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *BacklogWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *BacklogWorker) runOnce(ctx context.Context) {
	counts, err := w.ledger.PendingCounts(ctx)
	if err != nil {
		observability.IncrementWorkerRun("backlog", "failed")
		zap.L().Error("backlog refresh failed", zap.Error(err))
		return
	}
	// Zero out kinds with no pending entries so a drained queue reads as 0.
	for _, kind := range []string{domain.TxKindActivation, domain.TxKindWithdrawal} {
		observability.SetPendingBacklog(kind, counts[kind])
	}
	observability.IncrementWorkerRun("backlog", "success")
}
