package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// ReferralSweeper expires pending referrals past their validity window
type ReferralSweeper interface {
	ExpireStale(ctx context.Context) (int, error)
}

// QuotaResetter rolls over elapsed daily email quota windows
type QuotaResetter interface {
	ResetExpired(ctx context.Context) (int, error)
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron      *cron.Cron
	referrals ReferralSweeper
	quotas    QuotaResetter
	logger    *log.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(referrals ReferralSweeper, quotas QuotaResetter, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}

	return &CronManager{
		cron:      cron.New(),
		referrals: referrals,
		quotas:    quotas,
		logger:    logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	// Hourly: expire pending referrals past their validity window
	_, err := cm.cron.AddFunc("0 * * * *", func() {
		cm.logger.Println("🕐 Running referral expiry sweep...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, err := cm.referrals.ExpireStale(ctx)
		if err != nil {
			cm.logger.Printf("❌ Referral expiry sweep failed: %v", err)
			return
		}

		if count > 0 {
			cm.logger.Printf("✅ Expired %d stale referrals", count)
		}
	})

	if err != nil {
		return err
	}

	// Daily at midnight UTC: reset elapsed email quota windows
	_, err = cm.cron.AddFunc("5 0 * * *", func() {
		cm.logger.Println("🕐 Running daily email quota reset...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, err := cm.quotas.ResetExpired(ctx)
		if err != nil {
			cm.logger.Printf("❌ Quota reset failed: %v", err)
			return
		}

		cm.logger.Printf("✅ Reset %d email quotas", count)
	})

	if err != nil {
		return err
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Println("  - Hourly: expire stale referrals")
	cm.logger.Println("  - Daily at 00:05 UTC: reset email quotas")

	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler
func (cm *CronManager) Stop() {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	cm.cron.Stop()
}
