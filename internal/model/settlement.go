package model

import (
	"time"
)

const (
	SettlementStatusPending    = "PENDING"
	SettlementStatusSettled    = "SETTLED"
	SettlementStatusWrittenOff = "WRITTEN_OFF"
	SettlementStatusFailed     = "FAILED"
)

// PendingSettlement records a generation whose charge could not be applied
// when the content was delivered. The reconciler retries it later.
type PendingSettlement struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	WebsiteID string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"website_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Status    string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
	LastError string    `gorm:"type:varchar(512)" json:"last_error"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PendingSettlement) TableName() string {
	return "pending_settlement"
}
