package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hivebridge/hivebridge/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of a gorm connection.
// The connection must be opened with TranslateError so unique violations
// surface as gorm.ErrDuplicatedKey regardless of driver.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store backed by the given gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// wrap maps gorm errors onto the store's sentinel errors
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// --- users ---

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return wrap("create user", s.db.WithContext(ctx).Create(u).Error)
}

func (s *GormStore) UserByID(ctx context.Context, id int) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, wrap("user by id", err)
	}
	return &u, nil
}

func (s *GormStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, wrap("user by email", err)
	}
	return &u, nil
}

// --- referral codes ---

func (s *GormStore) CreateCode(ctx context.Context, rc *models.ReferralCode) error {
	return wrap("create code", s.db.WithContext(ctx).Create(rc).Error)
}

func (s *GormStore) ActiveCodeByOwner(ctx context.Context, ownerUserID int) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	err := s.db.WithContext(ctx).
		Where("owner_user_id = ? AND is_active = ?", ownerUserID, true).
		First(&rc).Error
	if err != nil {
		return nil, wrap("active code by owner", err)
	}
	return &rc, nil
}

func (s *GormStore) CodeByValue(ctx context.Context, code string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	if err := s.db.WithContext(ctx).First(&rc, "code = ?", code).Error; err != nil {
		return nil, wrap("code by value", err)
	}
	return &rc, nil
}

// --- referrals ---

func (s *GormStore) CreateReferral(ctx context.Context, r *models.Referral) error {
	return wrap("create referral", s.db.WithContext(ctx).Create(r).Error)
}

func (s *GormStore) ReferralByID(ctx context.Context, id int) (*models.Referral, error) {
	var r models.Referral
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, wrap("referral by id", err)
	}
	return &r, nil
}

func (s *GormStore) ReferralByEmail(ctx context.Context, email string) (*models.Referral, error) {
	var r models.Referral
	if err := s.db.WithContext(ctx).First(&r, "referred_email = ?", email).Error; err != nil {
		return nil, wrap("referral by email", err)
	}
	return &r, nil
}

func (s *GormStore) ReferralsByReferrer(ctx context.Context, referrerID int) ([]*models.Referral, error) {
	var refs []*models.Referral
	err := s.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC").
		Find(&refs).Error
	if err != nil {
		return nil, wrap("referrals by referrer", err)
	}
	return refs, nil
}

func (s *GormStore) CompleteReferral(ctx context.Context, id int, completedAt time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("id = ? AND status = ?", id, models.ReferralStatusPending).
		Updates(map[string]any{
			"status":       models.ReferralStatusCompleted,
			"completed_at": completedAt,
		})
	if res.Error != nil {
		return 0, wrap("complete referral", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("status = ? AND expires_at < ?", models.ReferralStatusPending, now).
		Update("status", models.ReferralStatusExpired)
	if res.Error != nil {
		return 0, wrap("expire pending", res.Error)
	}
	return res.RowsAffected, nil
}

// --- rewards ---

func (s *GormStore) Reward(ctx context.Context, userID int) (*models.ReferralReward, error) {
	var rw models.ReferralReward
	if err := s.db.WithContext(ctx).First(&rw, "user_id = ?", userID).Error; err != nil {
		return nil, wrap("reward", err)
	}
	return &rw, nil
}

func (s *GormStore) IncrementCompleted(ctx context.Context, userID int) (*models.ReferralReward, error) {
	// Upsert with an in-database increment; a read-modify-write here would
	// lose counts when two instances complete referrals for the same
	// referrer at once
	rw := &models.ReferralReward{UserID: userID, CompletedReferrals: 1}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"completed_referrals": gorm.Expr("completed_referrals + 1"),
				"updated_at":          time.Now(),
			}),
		}).
		Create(rw).Error
	if err != nil {
		return nil, wrap("increment completed", err)
	}
	return s.Reward(ctx, userID)
}

func (s *GormStore) GrantPremium(ctx context.Context, userID int, grantedAt, expiresAt time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.ReferralReward{}).
		Where("user_id = ? AND premium_granted = ?", userID, false).
		Updates(map[string]any{
			"premium_granted":    true,
			"premium_granted_at": grantedAt,
			"premium_expires_at": expiresAt,
		})
	if res.Error != nil {
		return 0, wrap("grant premium", res.Error)
	}
	return res.RowsAffected, nil
}

// --- quotas ---

func (s *GormStore) Quota(ctx context.Context, userID int) (*models.EmailQuota, error) {
	var q models.EmailQuota
	if err := s.db.WithContext(ctx).First(&q, "user_id = ?", userID).Error; err != nil {
		return nil, wrap("quota", err)
	}
	return &q, nil
}

func (s *GormStore) SaveQuota(ctx context.Context, q *models.EmailQuota) error {
	return wrap("save quota", s.db.WithContext(ctx).Save(q).Error)
}

func (s *GormStore) ResetExpiredQuotas(ctx context.Context, now, nextReset time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.EmailQuota{}).
		Where("reset_at <= ?", now).
		Updates(map[string]any{
			"used":     0,
			"reset_at": nextReset,
		})
	if res.Error != nil {
		return 0, wrap("reset expired quotas", res.Error)
	}
	return res.RowsAffected, nil
}
