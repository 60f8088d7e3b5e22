package model

import (
	"time"
)

const (
	TransactionTypeSignup     = "SIGNUP"
	TransactionTypeGeneration = "GENERATION"
	TransactionTypeAdjustment = "ADJUSTMENT"
	TransactionTypeReconcile  = "RECONCILE"
)

// CreditTransaction is an append-only ledger entry. Every balance change
// writes exactly one row in the same database transaction as the change.
type CreditTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID        string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	WebsiteID     *string   `gorm:"type:varchar(36);index" json:"website_id,omitempty"`
	Amount        int64     `gorm:"not null" json:"amount"` // signed: negative spends
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transaction"
}
