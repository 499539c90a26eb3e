package repository

import (
	accountdomain "inboxpilot-backend/internal/account/domain"
	classdomain "inboxpilot-backend/internal/classification/domain"
	"time"
)

// AccountRepository defines the interface for account persistence
type AccountRepository interface {
	Create(acc *accountdomain.Account) error
	FindByID(id string) (*accountdomain.Account, error)
	FindByEmail(email string) (*accountdomain.Account, error)
	// UpdateProfile writes identity and credential fields only.
	UpdateProfile(acc *accountdomain.Account) error
	UpdateTokens(accountID, accessToken, refreshToken string, expiry time.Time) error
	// SaveState writes the pipeline state (buckets, ledger, cursor, style
	// profile, counters) and the optional sync run in one transaction.
	SaveState(acc *accountdomain.Account, run *classdomain.SyncRun) error
	ListAll() ([]*accountdomain.Account, error)
	ListSyncRuns(accountID string, limit int) ([]*classdomain.SyncRun, error)
}
