package repository

import (
	"errors"
	"strings"
	"time"

	authdomain "inboxpilot-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxDevicesPerAccount bounds how many devices receive draft pushes for one
// account. Registering another device evicts the least recently seen one.
const MaxDevicesPerAccount = 5

var ErrEmptyDeviceToken = errors.New("device token is required")

// FCMTokenRepository is the registry of devices that receive draft pushes.
type FCMTokenRepository interface {
	Register(accountID, token, deviceInfo string) error
	ActiveTokens(accountID string) ([]string, error)
	Unregister(accountID, token string) (bool, error)
	Prune(tokens []string) error
}

type fcmTokenRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewFCMTokenRepository(db *gorm.DB) FCMTokenRepository {
	return &fcmTokenRepository{db: db, now: time.Now}
}

// Register binds a device to accountID. A token already bound to another
// account moves, since a device follows whoever signed in last.
func (r *fcmTokenRepository) Register(accountID, token, deviceInfo string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyDeviceToken
	}
	now := r.now()

	return r.db.Transaction(func(tx *gorm.DB) error {
		device := &authdomain.FCMToken{
			ID:         uuid.New().String(),
			AccountID:  accountID,
			Token:      token,
			DeviceInfo: deviceInfo,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"account_id", "device_info", "updated_at"}),
		}).Create(device).Error
		if err != nil {
			return err
		}

		var ids []string
		err = tx.Model(&authdomain.FCMToken{}).
			Where("account_id = ?", accountID).
			Order("updated_at DESC").
			Pluck("id", &ids).Error
		if err != nil || len(ids) <= MaxDevicesPerAccount {
			return err
		}
		return tx.Where("id IN ?", ids[MaxDevicesPerAccount:]).Delete(&authdomain.FCMToken{}).Error
	})
}

// ActiveTokens lists the account's device tokens, most recently seen first.
func (r *fcmTokenRepository) ActiveTokens(accountID string) ([]string, error) {
	var tokens []string
	err := r.db.Model(&authdomain.FCMToken{}).
		Where("account_id = ?", accountID).
		Order("updated_at DESC").
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Unregister removes a device only if it belongs to accountID and reports
// whether anything was removed.
func (r *fcmTokenRepository) Unregister(accountID, token string) (bool, error) {
	res := r.db.Where("account_id = ? AND token = ?", accountID, token).Delete(&authdomain.FCMToken{})
	return res.RowsAffected > 0, res.Error
}

// Prune drops tokens the push provider reported as unregistered.
func (r *fcmTokenRepository) Prune(tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.Where("token IN ?", tokens).Delete(&authdomain.FCMToken{}).Error
}
