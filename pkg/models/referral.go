package models

import "time"

// ReferralStatus is the lifecycle state of a referral.
// Transitions are one-way: pending -> completed or pending -> expired.
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusExpired   ReferralStatus = "expired"
)

// ReferralCode is a shareable invite code owned by a user.
// At most one row per owner may be active; enforced by a partial unique
// index created in the migration step.
type ReferralCode struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	OwnerUserID int       `gorm:"index;not null" json:"owner_user_id"`
	Code        string    `gorm:"uniqueIndex;size:16;not null" json:"code"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Referral records one redemption of a referral code by a prospective signup.
// The unique index on referred_email guarantees an email is referred at most
// once system-wide, regardless of status.
type Referral struct {
	ID             int            `gorm:"primaryKey" json:"id"`
	ReferrerID     int            `gorm:"index;not null" json:"referrer_id"`
	ReferredEmail  string         `gorm:"uniqueIndex;size:255;not null" json:"referred_email"`
	ReferralCodeID int            `gorm:"index;not null" json:"referral_code_id"`
	Status         ReferralStatus `gorm:"size:16;not null;default:'pending';index" json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	ExpiresAt      time.Time      `gorm:"index;not null" json:"expires_at"`
}

// ReferralReward aggregates completed referrals per user and carries the
// premium grant derived from them. One row per user.
type ReferralReward struct {
	UserID             int        `gorm:"primaryKey" json:"user_id"`
	CompletedReferrals int        `gorm:"not null;default:0" json:"completed_referrals"`
	PremiumGranted     bool       `gorm:"not null;default:false" json:"premium_granted"`
	PremiumGrantedAt   *time.Time `json:"premium_granted_at,omitempty"`
	PremiumExpiresAt   *time.Time `json:"premium_expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
