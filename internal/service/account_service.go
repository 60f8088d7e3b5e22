package service

import (
	"context"
	"fmt"

	"sitegen/internal/config"
	"sitegen/internal/infrastructure/identity"
	"sitegen/internal/model"

	"github.com/sirupsen/logrus"
)

const maxRemarkLength = 256

type AccountService struct {
	accounts      AccountStore
	ledger        LedgerStore
	signupCredits int64
	log           logrus.FieldLogger
}

func NewAccountService(accounts AccountStore, ledger LedgerStore, cfg *config.BusinessConfig, log logrus.FieldLogger) *AccountService {
	return &AccountService{
		accounts:      accounts,
		ledger:        ledger,
		signupCredits: cfg.SignupCredits,
		log:           log,
	}
}

// Balance is the balance reader: the caller's own credits. It has no side
// effects.
func (s *AccountService) Balance(ctx context.Context, caller *identity.Principal) (int64, error) {
	if caller == nil || caller.ID == "" {
		return 0, ErrUnauthenticated
	}
	account, err := s.accounts.GetByUserID(ctx, caller.ID)
	if err != nil {
		return 0, storeError(err)
	}
	return account.Credits, nil
}

// BalanceFor reads another account's balance. Only the owner and admins may.
func (s *AccountService) BalanceFor(ctx context.Context, caller *identity.Principal, userID string) (int64, error) {
	if caller == nil || caller.ID == "" {
		return 0, ErrUnauthenticated
	}
	if caller.ID != userID && !caller.IsAdmin {
		return 0, ErrPermissionDenied
	}
	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return 0, storeError(err)
	}
	return account.Credits, nil
}

// Register creates the caller's ledger row with the signup grant. Calling
// it again returns the existing row unchanged.
func (s *AccountService) Register(ctx context.Context, caller *identity.Principal) (*model.Account, bool, error) {
	if caller == nil || caller.ID == "" {
		return nil, false, ErrUnauthenticated
	}
	account, created, err := s.accounts.GetOrCreate(ctx, caller.ID, s.signupCredits)
	if err != nil {
		return nil, false, storeError(err)
	}
	if created {
		s.log.WithFields(logrus.Fields{
			"user_id": caller.ID,
			"credits": account.Credits,
		}).Info("account registered")
	}
	return account, created, nil
}

// Adjust applies an administrative credit change. Non-admin callers are
// refused before the payload is looked at.
func (s *AccountService) Adjust(ctx context.Context, caller *identity.Principal, userID string, delta int64, reason string) (int64, error) {
	if caller == nil || caller.ID == "" {
		return 0, ErrUnauthenticated
	}
	if !caller.IsAdmin {
		s.log.WithFields(logrus.Fields{
			"user_id": caller.ID,
			"target":  userID,
		}).Warn("credit adjustment refused")
		return 0, ErrPermissionDenied
	}
	if userID == "" {
		return 0, invalid("user_id is required")
	}
	if delta == 0 {
		return 0, invalid("delta must be non-zero")
	}

	remark := fmt.Sprintf("by %s: %s", caller.ID, reason)
	if len(remark) > maxRemarkLength {
		remark = remark[:maxRemarkLength]
	}

	after, err := s.accounts.Adjust(ctx, userID, delta, remark)
	if err != nil {
		return 0, storeError(err)
	}

	s.log.WithFields(logrus.Fields{
		"admin_id": caller.ID,
		"user_id":  userID,
		"delta":    delta,
		"balance":  after,
	}).Info("credits adjusted")
	return after, nil
}

// Transactions lists the caller's ledger, newest first.
func (s *AccountService) Transactions(ctx context.Context, caller *identity.Principal, page, pageSize int) ([]*model.CreditTransaction, int64, error) {
	if caller == nil || caller.ID == "" {
		return nil, 0, ErrUnauthenticated
	}
	page, pageSize = normalizePage(page, pageSize)
	items, total, err := s.ledger.ListByUserID(ctx, caller.ID, page, pageSize)
	if err != nil {
		return nil, 0, storeError(err)
	}
	return items, total, nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
