package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"sitegen/internal/config"
	"sitegen/internal/metrics"
	"sitegen/internal/model"
	"sitegen/internal/repository"
	"sitegen/internal/service"

	"github.com/sirupsen/logrus"
)

// Locker is satisfied by lock.DistributedLock.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// SettlementReconciler retries charges that could not be applied when the
// website was delivered. Each row ends SETTLED, WRITTEN_OFF (the account
// cannot cover it) or FAILED (too many errors).
type SettlementReconciler struct {
	store     service.SettlementStore
	locker    Locker
	topic     string
	log       logrus.FieldLogger
	stopCh    chan struct{}
	stopOnce  sync.Once
	interval  time.Duration
	batchSize int
	maxRetry  int
}

// NewSettlementReconciler builds the job. locker may be nil when a single
// instance runs; topic may be empty when no events are published.
func NewSettlementReconciler(store service.SettlementStore, locker Locker, topic string, cfg *config.BusinessConfig, log logrus.FieldLogger) *SettlementReconciler {
	interval := cfg.ReconcileInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SettlementReconciler{
		store:     store,
		locker:    locker,
		topic:     topic,
		log:       log.WithField("job", "settlement_reconciler"),
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: 50,
		maxRetry:  cfg.MaxRetryCount,
	}
}

func (j *SettlementReconciler) Start(ctx context.Context) {
	j.log.WithField("interval", j.interval).Info("started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("context done, exiting")
			return
		case <-j.stopCh:
			j.log.Info("stopped")
			return
		case <-ticker.C:
			j.reconcile(ctx)
		}
	}
}

func (j *SettlementReconciler) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *SettlementReconciler) reconcile(ctx context.Context) {
	if j.locker != nil {
		ok, err := j.locker.TryLock(ctx)
		if err != nil {
			j.log.WithError(err).Warn("acquire reconcile lock")
			return
		}
		if !ok {
			return
		}
		defer func() {
			// ctx may already be cancelled by shutdown; the lock must still go.
			unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
			defer cancel()
			if err := j.locker.Unlock(unlockCtx); err != nil {
				j.log.WithError(err).Warn("release reconcile lock")
			}
		}()
	}

	items, err := j.store.ListPending(ctx, j.batchSize)
	if err != nil {
		j.log.WithError(err).Error("query pending settlements")
		return
	}
	if len(items) == 0 {
		return
	}

	j.log.WithField("count", len(items)).Info("reconciling deferred settlements")
	for _, item := range items {
		j.resolve(ctx, item)
	}
}

func (j *SettlementReconciler) resolve(ctx context.Context, item *model.PendingSettlement) {
	fields := logrus.Fields{"user_id": item.UserID, "website_id": item.WebsiteID}

	status, err := j.store.Resolve(ctx, item, func(status string) *model.OutboxMessage {
		return service.NewOutboxMessage(j.topic, model.Event{
			Type:      model.EventSettlementResolved,
			UserID:    item.UserID,
			WebsiteID: item.WebsiteID,
			Amount:    item.Amount,
			Status:    status,
		})
	})
	switch {
	case errors.Is(err, repository.ErrSettlementClaimed):
		return
	case err != nil:
		next, recErr := j.store.RecordFailure(ctx, item, err, j.maxRetry)
		if recErr != nil {
			j.log.WithFields(fields).WithError(recErr).Error("record settlement failure")
			return
		}
		if next == model.SettlementStatusFailed {
			metrics.SettlementsReconciled.WithLabelValues(next).Inc()
		}
		j.log.WithFields(fields).WithError(err).WithField("status", next).Warn("settlement attempt failed")
		return
	}

	metrics.SettlementsReconciled.WithLabelValues(status).Inc()
	if status == model.SettlementStatusSettled {
		metrics.CreditsSpent.Add(float64(item.Amount))
	}
	j.log.WithFields(fields).WithField("status", status).Info("deferred settlement resolved")
}
