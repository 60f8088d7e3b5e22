package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Website is one generation record: the prompt sent to the backend and the
// HTML it produced. Rows are insert-only; an improvement is a new row whose
// ParentID points at the record it was based on.
type Website struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index;not null" json:"-"`
	ParentID  *string   `gorm:"type:varchar(36);index" json:"parent_id,omitempty"`
	Prompt    string    `gorm:"size:1048576;not null" json:"prompt"`
	HTML      string    `gorm:"size:1048576;not null" json:"html"`
	Model     string    `gorm:"type:varchar(128)" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Website) TableName() string {
	return "website"
}

func (w *Website) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// WebsiteSummary is the list view; it leaves out the HTML body.
type WebsiteSummary struct {
	ID        string    `json:"id"`
	ParentID  *string   `json:"parent_id,omitempty"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}
