package database

import (
	"context"
	"fmt"
	"log"

	"github.com/hivebridge/hivebridge/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Client holds the database connection
type Client struct {
	DB *gorm.DB
}

// NewClient opens a postgres connection and applies migrations
func NewClient(databaseURL string) (*Client, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to postgres: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed running migrations: %w", err)
	}

	log.Println("✅ Database connected and migrations applied")

	return &Client{DB: db}, nil
}

// Migrate creates the schema. Exported so tests can run the same
// migrations against sqlite.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.ReferralCode{},
		&models.Referral{},
		&models.ReferralReward{},
		&models.EmailQuota{},
	); err != nil {
		return err
	}

	// One active code per owner. AutoMigrate cannot express a partial
	// unique index; both postgres and sqlite accept this form.
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_referral_codes_one_active
		 ON referral_codes (owner_user_id) WHERE is_active`,
	).Error
}

// Close closes the database connection
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
