package referral

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hivebridge/hivebridge/pkg/cache"
	"github.com/hivebridge/hivebridge/pkg/logger"
	"github.com/hivebridge/hivebridge/pkg/metrics"
	"github.com/hivebridge/hivebridge/pkg/models"
	"github.com/hivebridge/hivebridge/pkg/store"
)

// codePrefix + 8 uppercase hex characters, globally unique
const codePrefix = "HB-"

var codePattern = regexp.MustCompile(`^HB-[A-F0-9]{8}$`)

// statsCacheTTL bounds how stale the stats endpoint may be
const statsCacheTTL = 60 * time.Second

// RewardRecorder is notified exactly once per completed referral. It owns
// the completed-referrals counter and the premium grant derived from it.
type RewardRecorder interface {
	RecordCompletion(ctx context.Context, userID int) error
}

// Config holds referral policy knobs
type Config struct {
	// ValidityPeriod is how long an applied referral stays redeemable
	ValidityPeriod time.Duration

	// PremiumThreshold is the completed-referrals count that earns premium
	PremiumThreshold int
}

// Service implements the referral code issuer, the application engine and
// the lifecycle manager
type Service struct {
	store   store.Store
	rewards RewardRecorder
	cache   *cache.Client
	metrics *metrics.Metrics
	log     logger.Logger
	cfg     Config

	now func() time.Time
}

// NewService creates a new referral service. cache and metrics may be nil
// (stats are then always computed from the datastore).
func NewService(st store.Store, rewards RewardRecorder, cacheClient *cache.Client, m *metrics.Metrics, log logger.Logger, cfg Config) *Service {
	if log == nil {
		log = logger.Default()
	}
	if cfg.ValidityPeriod <= 0 {
		cfg.ValidityPeriod = 30 * 24 * time.Hour
	}
	if cfg.PremiumThreshold <= 0 {
		cfg.PremiumThreshold = 10
	}

	return &Service{
		store:   st,
		rewards: rewards,
		cache:   cacheClient,
		metrics: m,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// ReferralStats aggregates a user's code, reward row and referral list
type ReferralStats struct {
	ReferralCode              string  `json:"referral_code,omitempty"`
	TotalReferrals            int     `json:"total_referrals"`
	CompletedReferrals        int     `json:"completed_referrals"`
	PendingReferrals          int     `json:"pending_referrals"`
	ExpiredReferrals          int     `json:"expired_referrals"`
	PremiumGranted            bool    `json:"premium_granted"`
	ReferralsNeededForPremium int     `json:"referrals_needed_for_premium"`
	ProgressPercentage        float64 `json:"progress_percentage"`
}

// Issue returns the user's active referral code, creating one on first
// call. Idempotent: issuing twice never produces two active codes.
func (s *Service) Issue(ctx context.Context, userID int) (code string, isNew bool, err error) {
	rc, err := s.store.ActiveCodeByOwner(ctx, userID)
	if err == nil {
		return rc.Code, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", false, fmt.Errorf("failed to look up referral code: %w", err)
	}

	// Lookup-then-insert is not atomic; the unique constraints on code and
	// on one-active-per-owner pick a single winner under concurrency. The
	// loser retries as a lookup.
	for attempt := 0; attempt < 3; attempt++ {
		candidate, err := generateCode()
		if err != nil {
			return "", false, fmt.Errorf("failed to generate code: %w", err)
		}

		rc := &models.ReferralCode{
			OwnerUserID: userID,
			Code:        candidate,
			IsActive:    true,
		}

		err = s.store.CreateCode(ctx, rc)
		if err == nil {
			s.log.Info("referral code issued", "user_id", userID, "code", candidate)
			return candidate, true, nil
		}

		if errors.Is(err, store.ErrDuplicate) {
			if existing, lerr := s.store.ActiveCodeByOwner(ctx, userID); lerr == nil {
				return existing.Code, false, nil
			}
			// Code-value collision rather than a concurrent issuance:
			// try a fresh candidate
			continue
		}

		return "", false, fmt.Errorf("failed to create referral code: %w", err)
	}

	return "", false, fmt.Errorf("failed to issue referral code after retries")
}

// Apply validates and records the use of a referral code by a new signup.
// applyingUserID is zero when the applicant has no account yet; the
// self-referral check then falls back to comparing emails.
func (s *Service) Apply(ctx context.Context, code, referredEmail string, applyingUserID int) (referralID, referrerID int, err error) {
	referredEmail = strings.ToLower(strings.TrimSpace(referredEmail))

	if !codePattern.MatchString(code) {
		return 0, 0, ErrInvalidFormat
	}

	rc, err := s.store.CodeByValue(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, 0, ErrCodeNotFound
		}
		return 0, 0, fmt.Errorf("failed to look up code: %w", err)
	}
	if !rc.IsActive {
		return 0, 0, ErrCodeNotFound
	}

	referrer, err := s.store.UserByID(ctx, rc.OwnerUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, 0, ErrReferrerMissing
		}
		return 0, 0, fmt.Errorf("failed to look up referrer: %w", err)
	}

	if _, err := s.store.ReferralByEmail(ctx, referredEmail); err == nil {
		return 0, 0, ErrAlreadyReferred
	} else if !errors.Is(err, store.ErrNotFound) {
		return 0, 0, fmt.Errorf("failed to check referred email: %w", err)
	}

	// Self-referral is rejected here, not left to a storage constraint
	if applyingUserID != 0 && applyingUserID == rc.OwnerUserID {
		return 0, 0, ErrSelfReferral
	}
	if strings.EqualFold(referredEmail, referrer.Email) {
		return 0, 0, ErrSelfReferral
	}

	ref := &models.Referral{
		ReferrerID:     rc.OwnerUserID,
		ReferredEmail:  referredEmail,
		ReferralCodeID: rc.ID,
		Status:         models.ReferralStatusPending,
		ExpiresAt:      s.now().Add(s.cfg.ValidityPeriod),
	}

	if err := s.store.CreateReferral(ctx, ref); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost the race against a concurrent apply for the same email
			return 0, 0, ErrAlreadyReferred
		}
		return 0, 0, fmt.Errorf("failed to create referral: %w", err)
	}

	s.invalidateStats(ctx, rc.OwnerUserID)
	s.log.Info("referral applied", "code", code, "referrer_id", rc.OwnerUserID, "referral_id", ref.ID)

	return ref.ID, rc.OwnerUserID, nil
}

// Complete transitions a pending, unexpired referral to completed and
// notifies the reward recorder. This is the only path that increments the
// referrer's completed-referrals counter.
func (s *Service) Complete(ctx context.Context, referralID int) (*models.Referral, error) {
	ref, err := s.store.ReferralByID(ctx, referralID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFoundOrCompleted
		}
		return nil, fmt.Errorf("failed to look up referral: %w", err)
	}

	switch ref.Status {
	case models.ReferralStatusCompleted:
		return nil, ErrNotFoundOrCompleted
	case models.ReferralStatusExpired:
		return nil, ErrExpired
	}

	// A referral is redeemable strictly before its expiry instant
	now := s.now()
	if !ref.ExpiresAt.After(now) {
		return nil, ErrExpired
	}

	affected, err := s.store.CompleteReferral(ctx, referralID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to complete referral: %w", err)
	}
	if affected == 0 {
		// Another caller won the transition
		return nil, ErrNotFoundOrCompleted
	}

	ref.Status = models.ReferralStatusCompleted
	ref.CompletedAt = &now

	if s.rewards != nil {
		if err := s.rewards.RecordCompletion(ctx, ref.ReferrerID); err != nil {
			return nil, fmt.Errorf("referral completed but reward update failed: %w", err)
		}
	}

	s.invalidateStats(ctx, ref.ReferrerID)
	s.log.Info("referral completed", "referral_id", referralID, "referrer_id", ref.ReferrerID)

	return ref, nil
}

// Stats aggregates referral counts and premium progress for a user
func (s *Service) Stats(ctx context.Context, userID int) (*ReferralStats, error) {
	cacheKey := fmt.Sprintf("referral:stats:%d", userID)

	if s.cache != nil {
		var cached ReferralStats
		if hit, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			if s.metrics != nil {
				s.metrics.RecordCacheHit("referral_stats")
			}
			return &cached, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheMiss("referral_stats")
		}
	}

	stats := &ReferralStats{}

	if rc, err := s.store.ActiveCodeByOwner(ctx, userID); err == nil {
		stats.ReferralCode = rc.Code
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up code: %w", err)
	}

	refs, err := s.store.ReferralsByReferrer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}

	for _, ref := range refs {
		stats.TotalReferrals++
		switch ref.Status {
		case models.ReferralStatusCompleted:
			stats.CompletedReferrals++
		case models.ReferralStatusPending:
			stats.PendingReferrals++
		case models.ReferralStatusExpired:
			stats.ExpiredReferrals++
		}
	}

	// The reward row is the authoritative completion counter; the list
	// scan above only feeds the per-status breakdown.
	completed := stats.CompletedReferrals
	if rw, err := s.store.Reward(ctx, userID); err == nil {
		completed = rw.CompletedReferrals
		stats.CompletedReferrals = rw.CompletedReferrals
		stats.PremiumGranted = rw.PremiumGranted
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up reward: %w", err)
	}

	needed := s.cfg.PremiumThreshold - completed
	if needed < 0 {
		needed = 0
	}
	stats.ReferralsNeededForPremium = needed

	progress := float64(completed) / float64(s.cfg.PremiumThreshold) * 100
	if progress > 100 {
		progress = 100
	}
	stats.ProgressPercentage = progress

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, stats, statsCacheTTL); err != nil {
			s.log.Warn("failed to cache referral stats", "user_id", userID, "error", err)
		}
	}

	return stats, nil
}

// ListReferrals lists all referrals sent by a user, newest first
func (s *Service) ListReferrals(ctx context.Context, userID int) ([]*models.Referral, error) {
	refs, err := s.store.ReferralsByReferrer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return refs, nil
}

// ExpireStale transitions every pending referral past its expiry to
// expired and returns the number affected. Idempotent.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	affected, err := s.store.ExpirePending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire referrals: %w", err)
	}

	if affected > 0 {
		s.log.Info("expired stale referrals", "count", affected)
	}

	return int(affected), nil
}

// ValidateCode reports whether a code is well-formed, exists and is active
func (s *Service) ValidateCode(ctx context.Context, code string) (bool, error) {
	if !codePattern.MatchString(code) {
		return false, nil
	}

	rc, err := s.store.CodeByValue(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up code: %w", err)
	}

	return rc.IsActive, nil
}

func (s *Service) invalidateStats(ctx context.Context, userID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, fmt.Sprintf("referral:stats:%d", userID)); err != nil {
		s.log.Warn("failed to invalidate stats cache", "user_id", userID, "error", err)
	}
}

// generateCode synthesizes a new candidate code from a cryptographically
// random source
func generateCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return codePrefix + strings.ToUpper(hex.EncodeToString(b)), nil
}
