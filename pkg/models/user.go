package models

import (
	"time"

	"gorm.io/gorm"
)

// Subscription tiers
const (
	TierStandard = "standard"
	TierElevated = "elevated"
)

// User represents a registered account
type User struct {
	ID           int            `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Name         string         `gorm:"size:255" json:"name"`
	Tier         string         `gorm:"size:32;not null;default:'standard'" json:"tier"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// UserInfo represents user information in responses
type UserInfo struct {
	ID      int    `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Tier    string `json:"tier"`
	Premium bool   `json:"premium"`
}
