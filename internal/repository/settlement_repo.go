package repository

import (
	"context"
	"errors"
	"fmt"

	"sitegen/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSettlementClaimed means another worker already moved the row out of
// PENDING.
var ErrSettlementClaimed = errors.New("settlement already claimed")

type SettlementRepository struct {
	db       *gorm.DB
	accounts *AccountRepository
	outbox   *OutboxRepository
}

func NewSettlementRepository(db *gorm.DB, accounts *AccountRepository) *SettlementRepository {
	return &SettlementRepository{db: db, accounts: accounts, outbox: NewOutboxRepository(db)}
}

// Create queues a deferred charge, with its outbox event when msg is
// non-nil. A second row for the same website is ignored.
func (r *SettlementRepository) Create(ctx context.Context, s *model.PendingSettlement, msg *model.OutboxMessage) error {
	if s.Status == "" {
		s.Status = model.SettlementStatusPending
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "website_id"}},
			DoNothing: true,
		}).Create(s)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 || msg == nil {
			return nil
		}
		return r.outbox.Create(ctx, tx, msg)
	})
}

func (r *SettlementRepository) ListPending(ctx context.Context, limit int) ([]*model.PendingSettlement, error) {
	var items []*model.PendingSettlement
	err := r.db.WithContext(ctx).
		Where("status = ?", model.SettlementStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// Resolve claims a PENDING row and charges it in one transaction. The row
// ends SETTLED, or WRITTEN_OFF when the account cannot cover the amount.
// A website that already has a charge in the ledger is settled without
// charging again.
// event, when non-nil, builds an outbox message for the final status that
// commits with the row.
func (r *SettlementRepository) Resolve(ctx context.Context, s *model.PendingSettlement, event func(status string) *model.OutboxMessage) (string, error) {
	var status string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed := tx.Model(&model.PendingSettlement{}).
			Where("id = ? AND status = ?", s.ID, model.SettlementStatusPending).
			Updates(map[string]interface{}{
				"status":   model.SettlementStatusSettled,
				"attempts": gorm.Expr("attempts + 1"),
			})
		if claimed.Error != nil {
			return claimed.Error
		}
		if claimed.RowsAffected == 0 {
			return ErrSettlementClaimed
		}

		// The first charge may have committed even though its caller saw
		// an error; the ledger row is the proof.
		charged, err := r.accounts.ledger.GetGenerationCharge(ctx, tx, s.WebsiteID)
		if err != nil {
			return fmt.Errorf("look up generation charge: %w", err)
		}

		websiteID := s.WebsiteID
		if charged == nil {
			_, err = r.accounts.applyDelta(ctx, tx, s.UserID, -s.Amount, model.TransactionTypeReconcile, &websiteID, "deferred generation charge")
		}
		switch {
		case err == nil:
			status = model.SettlementStatusSettled
		case errors.Is(err, ErrInsufficientCredit), errors.Is(err, ErrAccountNotFound):
			status = model.SettlementStatusWrittenOff
			update := tx.Model(&model.PendingSettlement{}).
				Where("id = ?", s.ID).
				Updates(map[string]interface{}{
					"status":     status,
					"last_error": err.Error(),
				})
			if update.Error != nil {
				return update.Error
			}
		default:
			return err
		}

		if event == nil {
			return nil
		}
		if msg := event(status); msg != nil {
			return r.outbox.Create(ctx, tx, msg)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// RecordFailure counts a failed attempt and stores the error. The row is
// parked as FAILED once attempts reaches maxAttempts.
func (r *SettlementRepository) RecordFailure(ctx context.Context, s *model.PendingSettlement, cause error, maxAttempts int) (string, error) {
	status := model.SettlementStatusPending
	if s.Attempts+1 >= maxAttempts {
		status = model.SettlementStatusFailed
	}

	msg := cause.Error()
	if len(msg) > 512 {
		msg = msg[:512]
	}

	err := r.db.WithContext(ctx).
		Model(&model.PendingSettlement{}).
		Where("id = ? AND status = ?", s.ID, model.SettlementStatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).Error
	if err != nil {
		return "", fmt.Errorf("record settlement failure: %w", err)
	}
	return status, nil
}
