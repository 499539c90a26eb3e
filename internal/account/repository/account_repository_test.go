package repository

import (
	"testing"
	"time"

	accountdomain "inboxpilot-backend/internal/account/domain"
	classdomain "inboxpilot-backend/internal/classification/domain"

	"github.com/google/go-cmp/cmp"
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
	// One connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&accountdomain.Account{}, &classdomain.SyncRun{}))
	return db
}

func newAccount() *accountdomain.Account {
	return &accountdomain.Account{
		Email:        "me@example.com",
		Name:         "Me",
		Provider:     "google",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}
}

func TestCreateSealsSecrets(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db, "test-key")

	acc := newAccount()
	require.NoError(t, repo.Create(acc))
	require.NotEmpty(t, acc.ID)
	assert.Equal(t, "access-1", acc.AccessToken)

	var raw accountdomain.Account
	require.NoError(t, db.First(&raw, "id = ?", acc.ID).Error)
	assert.NotEqual(t, "access-1", raw.AccessToken)
	assert.NotContains(t, raw.RefreshToken, "refresh-1")

	got, err := repo.FindByEmail("me@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)

	missing, err := repo.FindByID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSaveStateRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db, "test-key")
	acc := newAccount()
	require.NoError(t, repo.Create(acc))

	loaded, err := repo.FindByID(acc.ID)
	require.NoError(t, err)

	next := loaded.Clone()
	next.LastHistoryID = 4242
	next.ProcessedEmails = 3
	next.StyleProfile = "Brief."
	next.Ledger.RecordMessage("m1")
	next.Ledger.RecordThread("t1")
	require.NoError(t, next.Buckets.Append(classdomain.BucketReceipts, classdomain.Entry{
		EmailID:  "m1",
		Category: classdomain.CategoryReceipts,
		Content:  classdomain.Content{OrderNumber: "A-1", TotalAmount: "$12"},
	}))
	run := &classdomain.SyncRun{AccountID: acc.ID, Trigger: classdomain.TriggerManual, Classified: 1, StartedAt: time.Now()}

	require.NoError(t, repo.SaveState(next, run))
	assert.Equal(t, loaded.Version+1, next.Version)
	assert.NotEmpty(t, run.ID)

	got, err := repo.FindByID(acc.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(4242), got.LastHistoryID)
	assert.Equal(t, 3, got.ProcessedEmails)
	assert.Equal(t, "Brief.", got.StyleProfile)
	assert.Equal(t, next.Version, got.Version)
	if diff := cmp.Diff(next.Ledger, got.Ledger); diff != "" {
		t.Errorf("ledger mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, got.Buckets.Receipts, 1)
	assert.Equal(t, "A-1", got.Buckets.Receipts[0].Content.OrderNumber.String())

	runs, err := repo.ListSyncRuns(acc.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Classified)
}

func TestSaveStateRejectsStaleVersion(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db, "test-key")
	acc := newAccount()
	require.NoError(t, repo.Create(acc))

	a, err := repo.FindByID(acc.ID)
	require.NoError(t, err)
	b, err := repo.FindByID(acc.ID)
	require.NoError(t, err)

	a.ProcessedEmails = 1
	require.NoError(t, repo.SaveState(a, nil))

	b.ProcessedEmails = 99
	run := &classdomain.SyncRun{AccountID: acc.ID, Trigger: classdomain.TriggerPoll}
	assert.ErrorIs(t, repo.SaveState(b, run), ErrStaleAccount)

	got, err := repo.FindByID(acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ProcessedEmails)

	runs, err := repo.ListSyncRuns(acc.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestUpdateTokensKeepsRefreshToken(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db, "test-key")
	acc := newAccount()
	require.NoError(t, repo.Create(acc))

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateTokens(acc.ID, "access-2", "", expiry))

	got, err := repo.FindByID(acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.True(t, expiry.Equal(got.TokenExpiry))

	all, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "access-2", all[0].AccessToken)
}
