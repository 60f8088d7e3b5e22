package repository

import (
	"context"
	"errors"

	"sitegen/internal/model"

	"gorm.io/gorm"
)

// TransactionRepository is the append-only credit ledger.
type TransactionRepository struct {
	db     *gorm.DB
	reader *gorm.DB
}

func NewTransactionRepository(db, reader *gorm.DB) *TransactionRepository {
	if reader == nil {
		reader = db
	}
	return &TransactionRepository{db: db, reader: reader}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.CreditTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// GetGenerationCharge returns the GENERATION or RECONCILE row charged for a
// website, or nil when the website has not been charged. A nil tx uses the
// repository's pool.
func (r *TransactionRepository) GetGenerationCharge(ctx context.Context, tx *gorm.DB, websiteID string) (*model.CreditTransaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.CreditTransaction
	err := tx.WithContext(ctx).
		Where("website_id = ? AND type IN ?", websiteID,
			[]string{model.TransactionTypeGeneration, model.TransactionTypeReconcile}).
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID string, page, pageSize int) ([]*model.CreditTransaction, int64, error) {
	var transactions []*model.CreditTransaction
	var total int64

	query := r.reader.WithContext(ctx).Model(&model.CreditTransaction{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}
