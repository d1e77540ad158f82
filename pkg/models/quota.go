package models

import "time"

// EmailQuota tracks how many invitation emails a user has sent in the
// current window. Reset daily by the cron sweep.
type EmailQuota struct {
	UserID    int       `gorm:"primaryKey" json:"user_id"`
	Used      int       `gorm:"not null;default:0" json:"used"`
	ResetAt   time.Time `gorm:"index;not null" json:"reset_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
