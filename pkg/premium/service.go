// Package premium owns the referral-reward aggregate and the premium
// grant derived from it.
package premium

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hivebridge/hivebridge/pkg/cache"
	"github.com/hivebridge/hivebridge/pkg/logger"
	"github.com/hivebridge/hivebridge/pkg/metrics"
	"github.com/hivebridge/hivebridge/pkg/models"
	"github.com/hivebridge/hivebridge/pkg/store"
)

const accessCacheTTL = 5 * time.Minute

// Config holds premium policy knobs
type Config struct {
	// Threshold is the completed-referrals count that earns premium
	Threshold int

	// GrantValidity bounds how long a referral-earned grant lasts
	GrantValidity time.Duration
}

// Service aggregates completed referrals and answers premium-access checks
type Service struct {
	rewards store.RewardStore
	cache   *cache.Client
	metrics *metrics.Metrics
	log     logger.Logger
	cfg     Config
}

// NewService creates a new premium service. cache and metrics may be nil.
func NewService(rewards store.RewardStore, cacheClient *cache.Client, m *metrics.Metrics, log logger.Logger, cfg Config) *Service {
	if log == nil {
		log = logger.Default()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 10
	}
	if cfg.GrantValidity <= 0 {
		cfg.GrantValidity = 365 * 24 * time.Hour
	}

	return &Service{
		rewards: rewards,
		cache:   cacheClient,
		metrics: m,
		log:     log,
		cfg:     cfg,
	}
}

// Status describes a user's reward progress
type Status struct {
	CompletedReferrals int        `json:"completed_referrals"`
	PremiumGranted     bool       `json:"premium_granted"`
	PremiumActive      bool       `json:"premium_active"`
	PremiumGrantedAt   *time.Time `json:"premium_granted_at,omitempty"`
	PremiumExpiresAt   *time.Time `json:"premium_expires_at,omitempty"`
	ReferralsNeeded    int        `json:"referrals_needed"`
}

// RecordCompletion increments the user's completed-referrals counter and
// grants premium once the threshold is crossed. The counter never
// decreases. The increment and the grant both resolve in the datastore,
// so concurrent completions across instances never lose counts and the
// grant fires exactly once.
func (s *Service) RecordCompletion(ctx context.Context, userID int) error {
	rw, err := s.rewards.IncrementCompleted(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}

	if !rw.PremiumGranted && rw.CompletedReferrals >= s.cfg.Threshold {
		now := time.Now()
		granted, err := s.rewards.GrantPremium(ctx, userID, now, now.Add(s.cfg.GrantValidity))
		if err != nil {
			return fmt.Errorf("failed to grant premium: %w", err)
		}
		if granted > 0 {
			s.log.Info("premium granted", "user_id", userID, "completed_referrals", rw.CompletedReferrals)
			if s.metrics != nil {
				s.metrics.RecordPremiumGrant()
			}
		}
	}

	s.invalidateAccess(ctx, userID)

	return nil
}

// HasPremiumAccess reports whether the user holds an unexpired premium
// grant
func (s *Service) HasPremiumAccess(ctx context.Context, userID int) (bool, error) {
	cacheKey := fmt.Sprintf("premium:access:%d", userID)

	if s.cache != nil {
		var cached bool
		if hit, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			if s.metrics != nil {
				s.metrics.RecordCacheHit("premium_access")
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheMiss("premium_access")
		}
	}

	active, err := s.computeAccess(ctx, userID)
	if err != nil {
		return false, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, active, accessCacheTTL); err != nil {
			s.log.Warn("failed to cache premium access", "user_id", userID, "error", err)
		}
	}

	return active, nil
}

// Status returns the user's reward progress and grant state
func (s *Service) Status(ctx context.Context, userID int) (*Status, error) {
	rw, err := s.rewards.Reward(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &Status{ReferralsNeeded: s.cfg.Threshold}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reward row: %w", err)
	}

	needed := s.cfg.Threshold - rw.CompletedReferrals
	if needed < 0 {
		needed = 0
	}

	return &Status{
		CompletedReferrals: rw.CompletedReferrals,
		PremiumGranted:     rw.PremiumGranted,
		PremiumActive:      grantActive(rw, time.Now()),
		PremiumGrantedAt:   rw.PremiumGrantedAt,
		PremiumExpiresAt:   rw.PremiumExpiresAt,
		ReferralsNeeded:    needed,
	}, nil
}

func (s *Service) computeAccess(ctx context.Context, userID int) (bool, error) {
	rw, err := s.rewards.Reward(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load reward row: %w", err)
	}

	return grantActive(rw, time.Now()), nil
}

// grantActive: granted AND (no expiry OR expiry in the future)
func grantActive(rw *models.ReferralReward, now time.Time) bool {
	if !rw.PremiumGranted {
		return false
	}
	return rw.PremiumExpiresAt == nil || rw.PremiumExpiresAt.After(now)
}

func (s *Service) invalidateAccess(ctx context.Context, userID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, fmt.Sprintf("premium:access:%d", userID)); err != nil {
		s.log.Warn("failed to invalidate premium cache", "user_id", userID, "error", err)
	}
}
