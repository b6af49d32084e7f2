package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/homease/service-booking/internal/pkg/apperr"
	"github.com/homease/service-booking/internal/pkg/kvstore"
	"github.com/homease/service-booking/internal/pkg/metrics"
)

const (
	sweepDebounceKey = "sweeper:last-run"
	sweepBatchLimit  = 200
)

// Sweeper expires bookings that sat in PENDING past the staleness threshold.
// It runs on a background ticker and can additionally be triggered
// opportunistically (every booking-list read calls TriggerSweep); a kvstore
// debounce key keeps the opportunistic path from hammering the database.
type Sweeper struct {
	svc       *BookingService
	kv        kvstore.Store
	logger    *zap.Logger
	interval  time.Duration
	threshold time.Duration
}

// NewSweeper creates a Sweeper. interval is how often the background ticker
// fires; threshold is how old a pending booking may get before it expires.
func NewSweeper(svc *BookingService, kv kvstore.Store, logger *zap.Logger, interval, threshold time.Duration) *Sweeper {
	return &Sweeper{
		svc:       svc,
		kv:        kv,
		logger:    logger,
		interval:  interval,
		threshold: threshold,
	}
}

// Start runs the background sweep loop until ctx is cancelled.
func (w *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("stale-booking sweeper started",
		zap.Duration("interval", w.interval),
		zap.Duration("threshold", w.threshold))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stale-booking sweeper stopped")
			return
		case <-ticker.C:
			result, err := w.Sweep(ctx)
			if err != nil {
				w.logger.Error("sweep failed", zap.Error(err))
				continue
			}
			if result.Expired > 0 || result.Failed > 0 {
				w.logger.Info("sweep finished",
					zap.Int("scanned", result.Scanned),
					zap.Int("expired", result.Expired),
					zap.Int("failed", result.Failed))
			}
		}
	}
}

// TriggerSweep runs a sweep unless one ran within the debounce window. It is
// best-effort: a kvstore outage falls through to running the sweep.
func (w *Sweeper) TriggerSweep(ctx context.Context) {
	acquired, err := w.kv.SetNX(ctx, sweepDebounceKey, time.Now().UTC().Format(time.RFC3339), w.interval)
	if err != nil {
		w.logger.Warn("sweep debounce check failed, sweeping anyway", zap.Error(err))
	} else if !acquired {
		return
	}

	if _, err := w.Sweep(ctx); err != nil {
		w.logger.Error("opportunistic sweep failed", zap.Error(err))
	}
}

// Sweep expires every pending booking older than the threshold. Each
// booking's expiry and notifications are their own atomic unit; one
// booking's failure never blocks the rest.
func (w *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	cutoff := time.Now().UTC().Add(-w.threshold)

	ids, err := w.svc.bookings.FindStalePendingIDs(ctx, cutoff, sweepBatchLimit)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Scanned: len(ids)}
	for _, id := range ids {
		if err := w.svc.ExpireBooking(ctx, id); err != nil {
			// A booking confirmed between the scan and the lock simply
			// fails its transition check; that is not a sweep failure.
			if apperr.KindOf(err) == apperr.KindPrecondition {
				continue
			}
			result.Failed++
			metrics.SweeperFailuresTotal.Inc()
			w.logger.Warn("failed to expire stale booking",
				zap.String("booking_id", id.String()),
				zap.Error(err))
			continue
		}
		result.Expired++
		metrics.SweeperExpiredTotal.Inc()
	}
	return result, nil
}
