package repository

import (
	"context"
	"errors"
	"fmt"

	"sitegen/internal/model"

	"gorm.io/gorm"
)

var ErrWebsiteNotFound = errors.New("website not found")

type WebsiteRepository struct {
	db     *gorm.DB
	reader *gorm.DB
	outbox *OutboxRepository
}

func NewWebsiteRepository(db, reader *gorm.DB) *WebsiteRepository {
	if reader == nil {
		reader = db
	}
	return &WebsiteRepository{db: db, reader: reader, outbox: NewOutboxRepository(db)}
}

// CreateWithEvent inserts the record and, when msg is non-nil, its outbox
// event in one transaction.
func (r *WebsiteRepository) CreateWithEvent(ctx context.Context, w *model.Website, msg *model.OutboxMessage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(w).Error; err != nil {
			return err
		}
		if msg == nil {
			return nil
		}
		return r.outbox.Create(ctx, tx, msg)
	})
	if err != nil {
		return fmt.Errorf("insert website: %w", err)
	}
	return nil
}

// GetByID reads from the writer so a record is visible right after the
// request that created it.
func (r *WebsiteRepository) GetByID(ctx context.Context, id string) (*model.Website, error) {
	var w model.Website
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebsiteNotFound
		}
		return nil, fmt.Errorf("query website: %w", err)
	}
	return &w, nil
}

// ListByUserID returns summaries newest first, without the HTML bodies.
func (r *WebsiteRepository) ListByUserID(ctx context.Context, userID string, page, pageSize int) ([]*model.WebsiteSummary, int64, error) {
	var total int64
	query := r.reader.WithContext(ctx).Model(&model.Website{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count websites: %w", err)
	}

	var items []*model.WebsiteSummary
	err := query.
		Select("id", "parent_id", "prompt", "created_at").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list websites: %w", err)
	}
	return items, total, nil
}
