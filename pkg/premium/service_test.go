package premium

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hivebridge/hivebridge/pkg/cache"
	"github.com/hivebridge/hivebridge/pkg/database"
	"github.com/hivebridge/hivebridge/pkg/metrics"
	"github.com/hivebridge/hivebridge/pkg/models"
	"github.com/hivebridge/hivebridge/pkg/store"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	svc := NewService(store.NewGormStore(db), nil, nil, nil, Config{
		Threshold:     10,
		GrantValidity: 365 * 24 * time.Hour,
	})

	return svc, db
}

func TestRecordCompletion_IncrementsCounter(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordCompletion(ctx, 1))
	require.NoError(t, svc.RecordCompletion(ctx, 1))

	var rw models.ReferralReward
	require.NoError(t, db.First(&rw, "user_id = ?", 1).Error)
	assert.Equal(t, 2, rw.CompletedReferrals)
	assert.False(t, rw.PremiumGranted)
	assert.Nil(t, rw.PremiumGrantedAt)
}

func TestRecordCompletion_GrantsAtThreshold(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		require.NoError(t, svc.RecordCompletion(ctx, 1))
	}

	var rw models.ReferralReward
	require.NoError(t, db.First(&rw, "user_id = ?", 1).Error)
	require.False(t, rw.PremiumGranted)

	// The tenth completion crosses the threshold
	require.NoError(t, svc.RecordCompletion(ctx, 1))

	require.NoError(t, db.First(&rw, "user_id = ?", 1).Error)
	assert.Equal(t, 10, rw.CompletedReferrals)
	assert.True(t, rw.PremiumGranted)
	require.NotNil(t, rw.PremiumGrantedAt)
	require.NotNil(t, rw.PremiumExpiresAt)
	assert.WithinDuration(t, rw.PremiumGrantedAt.Add(365*24*time.Hour), *rw.PremiumExpiresAt, time.Second)
}

func TestRecordCompletion_GrantIsSticky(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, svc.RecordCompletion(ctx, 1))
	}

	var rw models.ReferralReward
	require.NoError(t, db.First(&rw, "user_id = ?", 1).Error)
	grantedAt := *rw.PremiumGrantedAt

	// Completions past the threshold keep counting without re-granting
	require.NoError(t, svc.RecordCompletion(ctx, 1))

	require.NoError(t, db.First(&rw, "user_id = ?", 1).Error)
	assert.Equal(t, 11, rw.CompletedReferrals)
	assert.True(t, rw.PremiumGranted)
	assert.WithinDuration(t, grantedAt, *rw.PremiumGrantedAt, time.Second)
}

// fakeRewards mirrors the datastore contract: the increment and the grant
// are each atomic, and the grant admits a single winner
type fakeRewards struct {
	mu             sync.Mutex
	rows           map[int]*models.ReferralReward
	incrementCalls int
}

func (f *fakeRewards) Reward(_ context.Context, userID int) (*models.ReferralReward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rw, ok := f.rows[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rw
	return &cp, nil
}

func (f *fakeRewards) IncrementCompleted(_ context.Context, userID int) (*models.ReferralReward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rw, ok := f.rows[userID]
	if !ok {
		rw = &models.ReferralReward{UserID: userID}
		f.rows[userID] = rw
	}
	rw.CompletedReferrals++
	f.incrementCalls++
	cp := *rw
	return &cp, nil
}

func (f *fakeRewards) GrantPremium(_ context.Context, userID int, grantedAt, expiresAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rw, ok := f.rows[userID]
	if !ok || rw.PremiumGranted {
		return 0, nil
	}
	rw.PremiumGranted = true
	rw.PremiumGrantedAt = &grantedAt
	rw.PremiumExpiresAt = &expiresAt
	return 1, nil
}

func TestRecordCompletion_ConcurrentCompletionsAllCount(t *testing.T) {
	rewards := &fakeRewards{rows: map[int]*models.ReferralReward{
		1: {UserID: 1, CompletedReferrals: 5},
	}}
	svc := NewService(rewards, nil, nil, nil, Config{Threshold: 10})
	ctx := context.Background()

	start := make(chan struct{})
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- svc.RecordCompletion(ctx, 1)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// Both completions persist regardless of interleaving
	rw, err := rewards.Reward(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, rw.CompletedReferrals)
	assert.Equal(t, 2, rewards.incrementCalls)
}

func TestRecordCompletion_CountersAndCache(t *testing.T) {
	svc, _ := setupTestService(t)

	mr := miniredis.RunT(t)
	svc.cache = &cache.Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	svc.metrics = metrics.New()
	ctx := context.Background()

	// Crossing the threshold is counted once, later completions are not
	for i := 0; i < 12; i++ {
		require.NoError(t, svc.RecordCompletion(ctx, 1))
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.PremiumGrants))

	// First access check misses the cache, the second hits it
	active, err := svc.HasPremiumAccess(ctx, 1)
	require.NoError(t, err)
	assert.True(t, active)
	active, err = svc.HasPremiumAccess(ctx, 1)
	require.NoError(t, err)
	assert.True(t, active)

	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.CacheMisses.WithLabelValues("premium_access")))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.CacheHits.WithLabelValues("premium_access")))
}

func TestHasPremiumAccess(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	t.Run("no reward row", func(t *testing.T) {
		active, err := svc.HasPremiumAccess(ctx, 1)
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("below threshold", func(t *testing.T) {
		require.NoError(t, svc.RecordCompletion(ctx, 2))
		active, err := svc.HasPremiumAccess(ctx, 2)
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("granted and unexpired", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			require.NoError(t, svc.RecordCompletion(ctx, 3))
		}
		active, err := svc.HasPremiumAccess(ctx, 3)
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("granted but expired", func(t *testing.T) {
		grantedAt := time.Now().Add(-400 * 24 * time.Hour)
		expiredAt := grantedAt.Add(365 * 24 * time.Hour)
		require.NoError(t, db.Create(&models.ReferralReward{
			UserID:             4,
			CompletedReferrals: 10,
			PremiumGranted:     true,
			PremiumGrantedAt:   &grantedAt,
			PremiumExpiresAt:   &expiredAt,
		}).Error)

		active, err := svc.HasPremiumAccess(ctx, 4)
		require.NoError(t, err)
		assert.False(t, active)
	})
}

func TestStatus(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	t.Run("fresh user", func(t *testing.T) {
		st, err := svc.Status(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, st.CompletedReferrals)
		assert.False(t, st.PremiumGranted)
		assert.False(t, st.PremiumActive)
		assert.Equal(t, 10, st.ReferralsNeeded)
	})

	t.Run("in progress", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, svc.RecordCompletion(ctx, 2))
		}
		st, err := svc.Status(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, st.CompletedReferrals)
		assert.Equal(t, 7, st.ReferralsNeeded)
	})

	t.Run("granted", func(t *testing.T) {
		for i := 0; i < 12; i++ {
			require.NoError(t, svc.RecordCompletion(ctx, 3))
		}
		st, err := svc.Status(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, 12, st.CompletedReferrals)
		assert.True(t, st.PremiumGranted)
		assert.True(t, st.PremiumActive)
		assert.Equal(t, 0, st.ReferralsNeeded)
		assert.NotNil(t, st.PremiumExpiresAt)
	})
}
