package handlers

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hivebridge/hivebridge/config"
	"github.com/hivebridge/hivebridge/pkg/auth"
	"github.com/hivebridge/hivebridge/pkg/cache"
	"github.com/hivebridge/hivebridge/pkg/database"
	"github.com/hivebridge/hivebridge/pkg/email"
	"github.com/hivebridge/hivebridge/pkg/models"
	"github.com/hivebridge/hivebridge/pkg/premium"
	"github.com/hivebridge/hivebridge/pkg/quota"
	"github.com/hivebridge/hivebridge/pkg/referral"
	"github.com/hivebridge/hivebridge/pkg/store"
)

// testEnv wires the full handler stack against an in-memory database and
// a miniredis instance
type testEnv struct {
	e         *echo.Echo
	db        *gorm.DB
	store     *store.GormStore
	cache     *cache.Client
	cfg       *config.Config
	referrals *referral.Service
	premium   *premium.Service
	quotas    *quota.Service
	email     *email.Service
	blacklist *auth.TokenBlacklist
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	cacheClient := &cache.Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	st := store.NewGormStore(db)
	cfg := &config.Config{
		JWTSecret:          "test-secret-key-for-handlers",
		JWTExpirationHours: 24,
		AdminEmails:        []string{"ops@hivebridge.io"},
	}

	prem := premium.NewService(st, cacheClient, nil, nil, premium.Config{})
	refs := referral.NewService(st, prem, cacheClient, nil, nil, referral.Config{})
	quotas := quota.NewService(st, prem, nil, quota.Config{StandardDaily: 3, PremiumDaily: 200})
	emailSvc := email.NewService("noreply@hivebridge.io", "HiveBridge", "https://app.hivebridge.io", "")
	blacklist := auth.NewTokenBlacklist(cacheClient)

	return &testEnv{
		e:         echo.New(),
		db:        db,
		store:     st,
		cache:     cacheClient,
		cfg:       cfg,
		referrals: refs,
		premium:   prem,
		quotas:    quotas,
		email:     emailSvc,
		blacklist: blacklist,
	}
}

// newRequest builds an echo context carrying an optional JSON body and an
// optional authenticated user
func (env *testEnv) newRequest(method, path, body string, user *models.User) (echo.Context, *httptest.ResponseRecorder) {
	httpReq := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		httpReq.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := env.e.NewContext(httpReq, rec)

	if user != nil {
		c.Set("user_id", user.ID)
		c.Set("user_email", user.Email)
		c.Set("user_tier", user.Tier)
	}

	return c, rec
}

func (env *testEnv) createUser(t *testing.T, emailAddr, tier string) *models.User {
	t.Helper()

	u := &models.User{
		Email:        emailAddr,
		Name:         "Test User",
		PasswordHash: mustHash(t, "password123"),
		Tier:         tier,
	}
	require.NoError(t, env.db.Create(u).Error)

	return u
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := auth.HashPassword(password)
	require.NoError(t, err)
	return h
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}
