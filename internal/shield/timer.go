package shield

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Timer periodically sweeps frozen transactions whose cooling window has
// elapsed and marks them COOLING_EXPIRED, so dashboards see the transition
// even when nobody polls the status endpoint.
type Timer struct {
	service  *Service
	store    Store
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewTimer creates a cooling-expiry sweep timer.
func NewTimer(service *Service, store Store, logger *slog.Logger) *Timer {
	return &Timer{
		service:  service,
		store:    store,
		interval: 30 * time.Second,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the timer loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the sweep loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.safeSweep(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in cooling sweep", "panic", fmt.Sprint(r))
		}
	}()
	t.sweep(ctx)
}

func (t *Timer) sweep(ctx context.Context) {
	cutoff := t.service.now().Add(-CoolingPeriod)
	elapsed, err := t.store.ListFrozenBefore(ctx, cutoff, 100)
	if err != nil {
		t.logger.Warn("failed to list elapsed transactions", "error", err)
		return
	}

	for _, txn := range elapsed {
		if err := t.service.expireElapsed(ctx, txn.TransactionID); err != nil {
			t.logger.Warn("failed to expire cooling period",
				"transaction_id", txn.TransactionID, "error", err)
		}
	}
}
