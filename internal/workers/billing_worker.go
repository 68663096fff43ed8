package workers

import (
	"context"
	"time"

	"afiliados_backend/internal/config"
	"afiliados_backend/internal/logger"
	"afiliados_backend/internal/services"
)

const resettleBatchSize = 100

// BillingWorker runs the periodic sweeps: cycle-end expiry, grace-period
// cancellation and re-settlement of payments whose commission pass was
// interrupted. Lazy expiry on read gives the same answers; the sweeps keep
// the stored rows from drifting behind indefinitely.
type BillingWorker struct {
	subscriptionService   services.SubscriptionService
	reconciliationService services.ReconciliationService
	sweepInterval         time.Duration
	resettleInterval      time.Duration
	grace                 time.Duration
}

func NewBillingWorker(
	cfg *config.Config,
	subscriptionService services.SubscriptionService,
	reconciliationService services.ReconciliationService,
) *BillingWorker {
	return &BillingWorker{
		subscriptionService:   subscriptionService,
		reconciliationService: reconciliationService,
		sweepInterval:         time.Duration(cfg.Billing.SweepMinutes) * time.Minute,
		resettleInterval:      time.Duration(cfg.Billing.ResettleMinutes) * time.Minute,
		grace:                 time.Duration(cfg.Billing.GraceDays) * 24 * time.Hour,
	}
}

// Start launches the background sweeps.
func (w *BillingWorker) Start(ctx context.Context) {
	go w.sweepSubscriptions(ctx)
	go w.resettlePayments(ctx)
}

func (w *BillingWorker) sweepSubscriptions(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.WorkerLog("billing", "subscription sweep stopped")
			return
		case <-ticker.C:
			now := time.Now()

			expired, err := w.subscriptionService.ExpireDue(now)
			if err != nil {
				logger.Error("subscription expiry sweep failed", "error", err)
			} else if expired > 0 {
				logger.WorkerLog("billing", "expired due subscriptions", "count", expired)
			}

			canceled, err := w.subscriptionService.CancelLapsed(now, w.grace)
			if err != nil {
				logger.Error("grace-period cancellation sweep failed", "error", err)
			} else if canceled > 0 {
				logger.WorkerLog("billing", "canceled lapsed subscriptions", "count", canceled)
			}
		}
	}
}

func (w *BillingWorker) resettlePayments(ctx context.Context) {
	ticker := time.NewTicker(w.resettleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.WorkerLog("billing", "resettlement sweep stopped")
			return
		case <-ticker.C:
			processed, err := w.reconciliationService.ResettleUnsettled(resettleBatchSize)
			if err != nil {
				logger.Error("resettlement sweep failed", "error", err)
				continue
			}
			if processed > 0 {
				logger.WorkerLog("billing", "resettled interrupted payments", "count", processed)
			}
		}
	}
}
