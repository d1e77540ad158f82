// Package quota enforces the per-user daily allowance for invitation
// emails. Premium users get the higher limit.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hivebridge/hivebridge/pkg/logger"
	"github.com/hivebridge/hivebridge/pkg/models"
	"github.com/hivebridge/hivebridge/pkg/store"
)

// ErrQuotaExceeded reports an exhausted daily allowance
var ErrQuotaExceeded = errors.New("daily email quota exceeded")

// PremiumChecker reports whether a user holds active premium access
type PremiumChecker interface {
	HasPremiumAccess(ctx context.Context, userID int) (bool, error)
}

// Config holds quota limits
type Config struct {
	StandardDaily int
	PremiumDaily  int
}

// Service tracks and enforces email quotas
type Service struct {
	store   store.QuotaStore
	premium PremiumChecker
	log     logger.Logger
	cfg     Config
}

// NewService creates a new quota service
func NewService(st store.QuotaStore, premium PremiumChecker, log logger.Logger, cfg Config) *Service {
	if log == nil {
		log = logger.Default()
	}
	if cfg.StandardDaily <= 0 {
		cfg.StandardDaily = 20
	}
	if cfg.PremiumDaily <= 0 {
		cfg.PremiumDaily = 200
	}

	return &Service{
		store:   st,
		premium: premium,
		log:     log,
		cfg:     cfg,
	}
}

// Usage describes a user's current quota window
type Usage struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Consume reserves n sends from the user's daily allowance. Fails with
// ErrQuotaExceeded when the allowance cannot cover n.
func (s *Service) Consume(ctx context.Context, userID, n int) error {
	limit, err := s.limitFor(ctx, userID)
	if err != nil {
		return err
	}

	q, err := s.currentWindow(ctx, userID)
	if err != nil {
		return err
	}

	if q.Used+n > limit {
		return ErrQuotaExceeded
	}

	q.Used += n
	if err := s.store.SaveQuota(ctx, q); err != nil {
		return fmt.Errorf("failed to save quota: %w", err)
	}

	return nil
}

// Usage returns the user's current window without consuming anything
func (s *Service) Usage(ctx context.Context, userID int) (*Usage, error) {
	limit, err := s.limitFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	q, err := s.currentWindow(ctx, userID)
	if err != nil {
		return nil, err
	}

	remaining := limit - q.Used
	if remaining < 0 {
		remaining = 0
	}

	return &Usage{
		Used:      q.Used,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   q.ResetAt,
	}, nil
}

// ResetExpired zeroes every quota row whose window has elapsed. Run daily
// by the cron manager.
func (s *Service) ResetExpired(ctx context.Context) (int, error) {
	now := time.Now()

	affected, err := s.store.ResetExpiredQuotas(ctx, now, nextMidnightUTC(now))
	if err != nil {
		return 0, fmt.Errorf("failed to reset quotas: %w", err)
	}

	if affected > 0 {
		s.log.Info("reset email quotas", "count", affected)
	}

	return int(affected), nil
}

// currentWindow loads the user's quota row, creating or rolling the
// window as needed
func (s *Service) currentWindow(ctx context.Context, userID int) (*models.EmailQuota, error) {
	now := time.Now()

	q, err := s.store.Quota(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.EmailQuota{UserID: userID, ResetAt: nextMidnightUTC(now)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quota: %w", err)
	}

	// Roll the window lazily when the daily sweep hasn't caught it yet
	if !now.Before(q.ResetAt) {
		q.Used = 0
		q.ResetAt = nextMidnightUTC(now)
	}

	return q, nil
}

func (s *Service) limitFor(ctx context.Context, userID int) (int, error) {
	if s.premium == nil {
		return s.cfg.StandardDaily, nil
	}

	isPremium, err := s.premium.HasPremiumAccess(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to check premium access: %w", err)
	}

	if isPremium {
		return s.cfg.PremiumDaily, nil
	}
	return s.cfg.StandardDaily, nil
}

func nextMidnightUTC(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
