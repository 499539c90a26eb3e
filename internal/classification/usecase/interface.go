package usecase

import (
	"context"
	"errors"
	"time"

	accountdomain "inboxpilot-backend/internal/account/domain"
	"inboxpilot-backend/internal/classification/domain"
)

var (
	// ErrAccountNotFound is returned when no account matches an id or address.
	ErrAccountNotFound = errors.New("account not found")
	// ErrPersistence wraps a failed commit. Nothing from the pass was kept.
	ErrPersistence = errors.New("failed to persist account state")
)

// ClassificationUsecase defines the interface for the inbox pipeline
type ClassificationUsecase interface {
	// ProcessLatest classifies the most recent inbox messages.
	ProcessLatest(ctx context.Context, accountID string) (*domain.PassReport, error)
	// PollLatest is ProcessLatest started by the scheduler.
	PollLatest(ctx context.Context, accountID string) (*domain.PassReport, error)
	// HandleNotification processes a push notification for emailAddress.
	HandleNotification(ctx context.Context, emailAddress string, historyID uint64) (*domain.PassReport, error)
	Watch(ctx context.Context, accountID string) (uint64, error)
	StopWatch(ctx context.Context, accountID string) error

	GetBuckets(accountID string) (*domain.Buckets, error)
	ReadAll(ctx context.Context, accountID string, kind domain.BucketKind) (int, error)
	QuickRemove(ctx context.Context, accountID string, kind domain.BucketKind, emailID, providerDraftID string) error
	SweepPromotions(ctx context.Context, accountID string) (int, error)

	AnalyzeStyle(ctx context.Context, accountID string) (string, error)
	GetStyleProfile(accountID string) (string, error)

	Search(ctx context.Context, accountID, query string, limit int) ([]SearchHit, error)
	ListSyncRuns(accountID string, limit int) ([]*domain.SyncRun, error)
}

// AccountStore is the persistence the pipeline needs.
type AccountStore interface {
	FindByID(id string) (*accountdomain.Account, error)
	FindByEmail(email string) (*accountdomain.Account, error)
	// SaveState writes the pipeline state of acc in one transaction, with
	// run when it is non-nil. It fails if acc.Version is stale.
	SaveState(acc *accountdomain.Account, run *domain.SyncRun) error
	UpdateTokens(accountID, accessToken, refreshToken string, expiry time.Time) error
	ListSyncRuns(accountID string, limit int) ([]*domain.SyncRun, error)
}

// DraftNotifier is told about drafts created by a committed pass.
type DraftNotifier interface {
	QueueDrafts(accountID string, entries []domain.Entry)
}

// EntryIndexer keeps a semantic index of classified entries.
type EntryIndexer interface {
	IndexEntries(ctx context.Context, accountID string, entries []domain.Entry) error
	Query(ctx context.Context, accountID, query string, limit int) ([]IndexHit, error)
}

// IndexHit is one semantic match.
type IndexHit struct {
	EmailID  string
	Distance float64
}

// SearchHit is one search result over the buckets.
type SearchHit struct {
	Bucket domain.BucketKind `json:"bucket"`
	Entry  domain.Entry      `json:"entry"`
	Score  float64           `json:"score"`
	Source string            `json:"source"` // "semantic" or "fuzzy"
}
