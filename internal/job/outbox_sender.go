package job

import (
	"context"
	"sync"
	"time"

	"sitegen/internal/config"
	"sitegen/internal/metrics"
	"sitegen/internal/model"

	"github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(topic, key, value string) error
}

type OutboxStore interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
}

// OutboxSender polls the outbox table and publishes pending messages.
type OutboxSender struct {
	store     OutboxStore
	publisher Publisher
	log       logrus.FieldLogger
	stopCh    chan struct{}
	stopOnce  sync.Once
	interval  time.Duration
	batchSize int
	maxRetry  int
}

func NewOutboxSender(store OutboxStore, publisher Publisher, cfg *config.BusinessConfig, log logrus.FieldLogger) *OutboxSender {
	interval := cfg.OutboxInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &OutboxSender{
		store:     store,
		publisher: publisher,
		log:       log.WithField("job", "outbox_sender"),
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: 100,
		maxRetry:  cfg.MaxRetryCount,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.WithField("interval", s.interval).Info("started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("context done, exiting")
			return
		case <-s.stopCh:
			s.log.Info("stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.store.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.WithError(err).Error("query pending messages")
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	fields := logrus.Fields{"id": msg.ID, "topic": msg.Topic, "key": msg.MessageKey}

	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		metrics.OutboxPublished.WithLabelValues("sent").Inc()
		if err := s.store.MarkSent(ctx, msg.ID); err != nil {
			s.log.WithFields(fields).WithError(err).Error("mark message sent")
			return
		}
		s.log.WithFields(fields).Debug("message published")
		return
	}

	s.log.WithFields(fields).WithError(err).Warn("publish failed")

	if msg.RetryCount+1 >= s.maxRetry {
		metrics.OutboxPublished.WithLabelValues("failed").Inc()
		if err := s.store.MarkAsFailed(ctx, msg.ID); err != nil {
			s.log.WithFields(fields).WithError(err).Error("mark message failed")
			return
		}
		s.log.WithFields(fields).Error("message exceeded max retries, marked failed")
		return
	}

	metrics.OutboxPublished.WithLabelValues("retry").Inc()
	if err := s.store.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.log.WithFields(fields).WithError(err).Error("increment retry count")
	}
}
