package repository

import (
	"context"
	"errors"
	"fmt"

	"sitegen/internal/model"
	"sitegen/pkg/idgen"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInsufficientCredit = errors.New("insufficient credit")
)

// AccountRepository reads balances from the reader pool and applies every
// balance change on the writer pool together with its ledger row.
type AccountRepository struct {
	db     *gorm.DB
	reader *gorm.DB
	ledger *TransactionRepository
}

// NewAccountRepository takes the writer pool and an optional read-only
// pool; a nil reader falls back to the writer.
func NewAccountRepository(db, reader *gorm.DB) *AccountRepository {
	if reader == nil {
		reader = db
	}
	return &AccountRepository{
		db:     db,
		reader: reader,
		ledger: NewTransactionRepository(db, reader),
	}
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*model.Account, error) {
	return findAccount(ctx, r.reader, userID)
}

// GetByUserIDFromPrimary reads through the writer pool. The gate uses it so
// it never authorizes against a lagging replica.
func (r *AccountRepository) GetByUserIDFromPrimary(ctx context.Context, userID string) (*model.Account, error) {
	return findAccount(ctx, r.db, userID)
}

func findAccount(ctx context.Context, db *gorm.DB, userID string) (*model.Account, error) {
	var account model.Account
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return &account, nil
}

// GetOrCreate inserts the account with initialCredits unless it already
// exists. created reports whether this call inserted it; only then is a
// SIGNUP ledger row written.
func (r *AccountRepository) GetOrCreate(ctx context.Context, userID string, initialCredits int64) (account *model.Account, created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fresh := &model.Account{UserID: userID, Credits: initialCredits}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(fresh)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		created = true
		if initialCredits == 0 {
			return nil
		}
		return r.ledger.Create(ctx, tx, &model.CreditTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			Amount:        initialCredits,
			Type:          model.TransactionTypeSignup,
			BalanceBefore: 0,
			BalanceAfter:  initialCredits,
			Remark:        "signup grant",
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("create account: %w", err)
	}

	account, err = r.GetByUserIDFromPrimary(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return account, created, nil
}

// Charge spends amount credits for a generation and returns the balance
// after the charge. It is a single conditional decrement; a balance below
// amount yields ErrInsufficientCredit and changes nothing.
func (r *AccountRepository) Charge(ctx context.Context, userID, websiteID string, amount int64) (int64, error) {
	var after int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		after, err = r.applyDelta(ctx, tx, userID, -amount, model.TransactionTypeGeneration, &websiteID, "website generation")
		return err
	})
	if err != nil {
		return 0, err
	}
	return after, nil
}

// Adjust applies an administrative signed delta. A negative delta larger
// than the balance is rejected with ErrInsufficientCredit.
func (r *AccountRepository) Adjust(ctx context.Context, userID string, delta int64, remark string) (int64, error) {
	var after int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		after, err = r.applyDelta(ctx, tx, userID, delta, model.TransactionTypeAdjustment, nil, remark)
		return err
	})
	if err != nil {
		return 0, err
	}
	return after, nil
}

// applyDelta changes the balance inside tx and appends the ledger row.
// Decrements are guarded by credits >= -delta in the same statement.
func (r *AccountRepository) applyDelta(ctx context.Context, tx *gorm.DB, userID string, delta int64, txType string, websiteID *string, remark string) (int64, error) {
	query := tx.WithContext(ctx).Model(&model.Account{}).Where("user_id = ?", userID)
	if delta < 0 {
		query = query.Where("credits >= ?", -delta)
	}
	result := query.Updates(map[string]interface{}{
		"credits": gorm.Expr("credits + ?", delta),
		"version": gorm.Expr("version + 1"),
	})
	if result.Error != nil {
		return 0, fmt.Errorf("update balance: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		if _, err := findAccount(ctx, tx, userID); err != nil {
			return 0, err
		}
		return 0, ErrInsufficientCredit
	}

	account, err := findAccount(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	err = r.ledger.Create(ctx, tx, &model.CreditTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        userID,
		WebsiteID:     websiteID,
		Amount:        delta,
		Type:          txType,
		BalanceBefore: account.Credits - delta,
		BalanceAfter:  account.Credits,
		Remark:        remark,
	})
	if err != nil {
		return 0, fmt.Errorf("append ledger: %w", err)
	}
	return account.Credits, nil
}
