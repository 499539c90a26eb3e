package repository

import (
	"fmt"
	"testing"
	"time"

	authdomain "inboxpilot-backend/internal/auth/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&authdomain.RefreshToken{}, &authdomain.FCMToken{}))
	return db
}

func TestRefreshTokenLifecycle(t *testing.T) {
	repo := NewTokenRepository(newTestDB(t))

	require.NoError(t, repo.SaveRefreshToken(&authdomain.RefreshToken{
		Token:     "tok-1",
		AccountID: "acc-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	got, err := repo.FindRefreshToken("tok-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acc-1", got.AccountID)

	missing, err := repo.FindRefreshToken("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.DeleteRefreshToken("tok-1"))
	got, err = repo.FindRefreshToken("tok-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveRefreshTokenDropsExpiredOnes(t *testing.T) {
	repo := NewTokenRepository(newTestDB(t))

	require.NoError(t, repo.SaveRefreshToken(&authdomain.RefreshToken{
		Token:     "old",
		AccountID: "acc-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, repo.SaveRefreshToken(&authdomain.RefreshToken{
		Token:     "other-device",
		AccountID: "acc-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, repo.SaveRefreshToken(&authdomain.RefreshToken{
		Token:     "new",
		AccountID: "acc-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	old, err := repo.FindRefreshToken("old")
	require.NoError(t, err)
	assert.Nil(t, old)

	other, err := repo.FindRefreshToken("other-device")
	require.NoError(t, err)
	assert.NotNil(t, other)

	require.NoError(t, repo.DeleteRefreshTokensByAccount("acc-1"))
	other, err = repo.FindRefreshToken("other-device")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func newDeviceRegistry(t *testing.T) *fcmTokenRepository {
	t.Helper()
	clock := time.Date(2030, time.June, 15, 12, 0, 0, 0, time.UTC)
	return &fcmTokenRepository{
		db: newTestDB(t),
		now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}
}

func TestDeviceMovesBetweenAccounts(t *testing.T) {
	repo := newDeviceRegistry(t)

	require.NoError(t, repo.Register("acc-1", "device-a", "pixel"))
	require.NoError(t, repo.Register("acc-1", "device-b", "iphone"))
	// Signing in with another account on the same device moves the token.
	require.NoError(t, repo.Register("acc-2", "device-a", "pixel"))

	first, err := repo.ActiveTokens("acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"device-b"}, first)

	second, err := repo.ActiveTokens("acc-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"device-a"}, second)
}

func TestDeviceRegistryEvictsLeastRecentlySeen(t *testing.T) {
	repo := newDeviceRegistry(t)

	for i := 0; i < MaxDevicesPerAccount; i++ {
		require.NoError(t, repo.Register("acc-1", fmt.Sprintf("device-%d", i), ""))
	}
	// Seeing device-0 again makes device-1 the oldest.
	require.NoError(t, repo.Register("acc-1", "device-0", ""))
	require.NoError(t, repo.Register("acc-1", "device-new", ""))
	require.NoError(t, repo.Register("acc-2", "other", ""))

	tokens, err := repo.ActiveTokens("acc-1")
	require.NoError(t, err)
	require.Len(t, tokens, MaxDevicesPerAccount)
	assert.Equal(t, "device-new", tokens[0])
	assert.Equal(t, "device-0", tokens[1])
	assert.NotContains(t, tokens, "device-1")

	other, err := repo.ActiveTokens("acc-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, other)
}

func TestDeviceRegistryRejectsBlankToken(t *testing.T) {
	repo := newDeviceRegistry(t)
	assert.ErrorIs(t, repo.Register("acc-1", "  ", "pixel"), ErrEmptyDeviceToken)
}

func TestUnregisterIsScopedToOwner(t *testing.T) {
	repo := newDeviceRegistry(t)
	require.NoError(t, repo.Register("acc-1", "device-a", ""))

	removed, err := repo.Unregister("acc-2", "device-a")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = repo.Unregister("acc-1", "device-a")
	require.NoError(t, err)
	assert.True(t, removed)

	left, err := repo.ActiveTokens("acc-1")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestPruneDropsRejectedTokens(t *testing.T) {
	repo := newDeviceRegistry(t)
	require.NoError(t, repo.Register("acc-1", "a", ""))
	require.NoError(t, repo.Register("acc-1", "b", ""))
	require.NoError(t, repo.Register("acc-2", "c", ""))

	require.NoError(t, repo.Prune(nil))
	require.NoError(t, repo.Prune([]string{"a", "c"}))

	left, err := repo.ActiveTokens("acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, left)
	left, err = repo.ActiveTokens("acc-2")
	require.NoError(t, err)
	assert.Empty(t, left)
}
