package model

import (
	"time"
)

// Account is a user's credit ledger row. UserID is the identity provider's
// subject; the application never assigns it.
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"`
	Credits   int64     `gorm:"not null;default:0" json:"credits"` // never negative
	Version   int       `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
