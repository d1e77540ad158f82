// Package store is the persistence boundary. Services depend on the
// interfaces here, never on gorm directly, so tests can run against a
// sqlite-backed store and production against postgres.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hivebridge/hivebridge/pkg/models"
)

var (
	// ErrNotFound reports that no row matched. Always distinguishable from
	// a query failure.
	ErrNotFound = errors.New("store: record not found")

	// ErrDuplicate reports a unique-constraint violation. The constraints
	// are the correctness backstop for check-then-act races, so callers
	// must treat this as a first-class outcome, not a storage failure.
	ErrDuplicate = errors.New("store: duplicate record")
)

// UserStore provides access to user rows
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id int) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}

// ReferralStore provides access to referral codes and referral rows
type ReferralStore interface {
	CreateCode(ctx context.Context, rc *models.ReferralCode) error
	ActiveCodeByOwner(ctx context.Context, ownerUserID int) (*models.ReferralCode, error)
	CodeByValue(ctx context.Context, code string) (*models.ReferralCode, error)

	CreateReferral(ctx context.Context, r *models.Referral) error
	ReferralByID(ctx context.Context, id int) (*models.Referral, error)
	ReferralByEmail(ctx context.Context, email string) (*models.Referral, error)
	ReferralsByReferrer(ctx context.Context, referrerID int) ([]*models.Referral, error)

	// CompleteReferral transitions a pending row to completed and returns
	// the number of rows affected (0 when the row was not pending anymore).
	CompleteReferral(ctx context.Context, id int, completedAt time.Time) (int64, error)

	// ExpirePending transitions every pending row past its expiry to
	// expired and returns the number of rows affected.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// RewardStore provides access to per-user reward aggregates
type RewardStore interface {
	Reward(ctx context.Context, userID int) (*models.ReferralReward, error)

	// IncrementCompleted bumps the user's completed-referrals counter in a
	// single datastore statement, creating the row on first completion, and
	// returns the row as persisted. Concurrent increments all count.
	IncrementCompleted(ctx context.Context, userID int) (*models.ReferralReward, error)

	// GrantPremium marks an ungranted reward row granted and returns the
	// number of rows affected: 0 when another caller already granted, so
	// exactly one caller wins under concurrency.
	GrantPremium(ctx context.Context, userID int, grantedAt, expiresAt time.Time) (int64, error)
}

// QuotaStore provides access to per-user email quota rows
type QuotaStore interface {
	Quota(ctx context.Context, userID int) (*models.EmailQuota, error)
	SaveQuota(ctx context.Context, q *models.EmailQuota) error

	// ResetExpiredQuotas zeroes every quota row whose window has elapsed
	// and advances its reset time. Returns the number of rows affected.
	ResetExpiredQuotas(ctx context.Context, now, nextReset time.Time) (int64, error)
}

// Store is the full datastore contract the service layer is wired with
type Store interface {
	UserStore
	ReferralStore
	RewardStore
	QuotaStore
}
