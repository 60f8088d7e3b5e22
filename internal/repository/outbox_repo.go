package repository

import (
	"context"
	"fmt"

	"sitegen/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Create writes msg through tx so it commits or rolls back with the change
// it announces. A nil tx uses the repository's pool.
func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	if tx == nil {
		tx = r.db
	}
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	return tx.WithContext(ctx).Create(msg).Error
}

// GetPendingMessages returns up to limit unsent events in insertion order,
// which keeps per-key ordering on the topic.
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	if err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list pending outbox messages: %w", err)
	}
	return messages, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	return r.set(ctx, id, map[string]interface{}{"status": model.OutboxStatusSent})
}

func (r *OutboxRepository) IncrementRetryCount(ctx context.Context, id int64) error {
	return r.set(ctx, id, map[string]interface{}{"retry_count": gorm.Expr("retry_count + 1")})
}

// MarkAsFailed parks the message after its last attempt.
func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id int64) error {
	return r.set(ctx, id, map[string]interface{}{
		"status":      model.OutboxStatusFailed,
		"retry_count": gorm.Expr("retry_count + 1"),
	})
}

func (r *OutboxRepository) set(ctx context.Context, id int64, fields map[string]interface{}) error {
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(fields).Error
	if err != nil {
		return fmt.Errorf("update outbox message %d: %w", id, err)
	}
	return nil
}
