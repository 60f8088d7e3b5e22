package service

import (
	"context"

	"sitegen/internal/model"
)

// Storage ports. The gorm repositories implement them; tests use fakes.

type AccountStore interface {
	GetByUserID(ctx context.Context, userID string) (*model.Account, error)
	GetByUserIDFromPrimary(ctx context.Context, userID string) (*model.Account, error)
	GetOrCreate(ctx context.Context, userID string, initialCredits int64) (*model.Account, bool, error)
	Charge(ctx context.Context, userID, websiteID string, amount int64) (int64, error)
	Adjust(ctx context.Context, userID string, delta int64, remark string) (int64, error)
}

type LedgerStore interface {
	ListByUserID(ctx context.Context, userID string, page, pageSize int) ([]*model.CreditTransaction, int64, error)
}

type WebsiteStore interface {
	CreateWithEvent(ctx context.Context, w *model.Website, msg *model.OutboxMessage) error
	GetByID(ctx context.Context, id string) (*model.Website, error)
	ListByUserID(ctx context.Context, userID string, page, pageSize int) ([]*model.WebsiteSummary, int64, error)
}

type SettlementStore interface {
	Create(ctx context.Context, s *model.PendingSettlement, msg *model.OutboxMessage) error
	ListPending(ctx context.Context, limit int) ([]*model.PendingSettlement, error)
	Resolve(ctx context.Context, s *model.PendingSettlement, event func(status string) *model.OutboxMessage) (string, error)
	RecordFailure(ctx context.Context, s *model.PendingSettlement, cause error, maxAttempts int) (string, error)
}
