package repository

import (
	"errors"
	"fmt"
	"time"

	accountdomain "inboxpilot-backend/internal/account/domain"
	classdomain "inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/pkg/crypto"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleAccount is returned by SaveState when the row changed since the
// account was loaded.
var ErrStaleAccount = errors.New("account was modified concurrently")

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db  *gorm.DB
	key string // secrets at rest are sealed with this key
}

// NewAccountRepository creates a new instance of accountRepository
func NewAccountRepository(db *gorm.DB, encryptionKey string) AccountRepository {
	return &accountRepository{
		db:  db,
		key: encryptionKey,
	}
}

func (r *accountRepository) Create(acc *accountdomain.Account) error {
	if acc.ID == "" {
		acc.ID = uuid.New().String()
	}
	acc.CreatedAt = time.Now()
	acc.UpdatedAt = time.Now()

	row := acc.Clone()
	if err := r.seal(row); err != nil {
		return err
	}
	return r.db.Create(row).Error
}

func (r *accountRepository) FindByID(id string) (*accountdomain.Account, error) {
	return r.findOne("id = ?", id)
}

func (r *accountRepository) FindByEmail(email string) (*accountdomain.Account, error) {
	return r.findOne("email = ?", email)
}

func (r *accountRepository) findOne(query string, arg interface{}) (*accountdomain.Account, error) {
	var acc accountdomain.Account
	err := r.db.Where(query, arg).First(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.open(&acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *accountRepository) UpdateProfile(acc *accountdomain.Account) error {
	acc.UpdatedAt = time.Now()
	row := acc.Clone()
	if err := r.seal(row); err != nil {
		return err
	}
	return r.db.Model(&accountdomain.Account{}).Where("id = ?", acc.ID).Updates(map[string]interface{}{
		"name":          row.Name,
		"avatar_url":    row.AvatarURL,
		"provider":      row.Provider,
		"access_token":  row.AccessToken,
		"refresh_token": row.RefreshToken,
		"token_expiry":  row.TokenExpiry,
		"app_password":  row.AppPassword,
		"updated_at":    row.UpdatedAt,
	}).Error
}

// UpdateTokens stores a refreshed OAuth token. An empty refresh token keeps
// the stored one, since Google only returns it on first consent.
func (r *accountRepository) UpdateTokens(accountID, accessToken, refreshToken string, expiry time.Time) error {
	sealedAccess, err := crypto.Encrypt(accessToken, r.key)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"access_token": sealedAccess,
		"token_expiry": expiry,
		"updated_at":   time.Now(),
	}
	if refreshToken != "" {
		sealedRefresh, err := crypto.Encrypt(refreshToken, r.key)
		if err != nil {
			return err
		}
		updates["refresh_token"] = sealedRefresh
	}
	return r.db.Model(&accountdomain.Account{}).Where("id = ?", accountID).Updates(updates).Error
}

// SaveState commits the pipeline state guarded by the version column.
func (r *accountRepository) SaveState(acc *accountdomain.Account, run *classdomain.SyncRun) error {
	now := time.Now()
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&accountdomain.Account{}).
			Where("id = ? AND version = ?", acc.ID, acc.Version).
			Updates(map[string]interface{}{
				"buckets":          acc.Buckets,
				"ledger":           acc.Ledger,
				"last_history_id":  acc.LastHistoryID,
				"watching":         acc.Watching,
				"processed_emails": acc.ProcessedEmails,
				"style_profile":    acc.StyleProfile,
				"version":          acc.Version + 1,
				"updated_at":       now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleAccount
		}

		if run != nil {
			if run.ID == "" {
				run.ID = uuid.New().String()
			}
			run.CreatedAt = now
			if err := tx.Create(run).Error; err != nil {
				return fmt.Errorf("failed to record sync run: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	acc.Version++
	acc.UpdatedAt = now
	return nil
}

func (r *accountRepository) ListAll() ([]*accountdomain.Account, error) {
	var accounts []*accountdomain.Account
	if err := r.db.Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	for _, acc := range accounts {
		if err := r.open(acc); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

func (r *accountRepository) ListSyncRuns(accountID string, limit int) ([]*classdomain.SyncRun, error) {
	var runs []*classdomain.SyncRun
	err := r.db.Where("account_id = ?", accountID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *accountRepository) seal(acc *accountdomain.Account) error {
	var err error
	if acc.AccessToken, err = crypto.Encrypt(acc.AccessToken, r.key); err != nil {
		return err
	}
	if acc.RefreshToken, err = crypto.Encrypt(acc.RefreshToken, r.key); err != nil {
		return err
	}
	if acc.AppPassword, err = crypto.Encrypt(acc.AppPassword, r.key); err != nil {
		return err
	}
	return nil
}

func (r *accountRepository) open(acc *accountdomain.Account) error {
	var err error
	if acc.AccessToken, err = crypto.Decrypt(acc.AccessToken, r.key); err != nil {
		return fmt.Errorf("access token: %w", err)
	}
	if acc.RefreshToken, err = crypto.Decrypt(acc.RefreshToken, r.key); err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	if acc.AppPassword, err = crypto.Decrypt(acc.AppPassword, r.key); err != nil {
		return fmt.Errorf("app password: %w", err)
	}
	return nil
}
