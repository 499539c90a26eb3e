package repository

import (
	"errors"
	"time"

	authdomain "inboxpilot-backend/internal/auth/domain"

	"gorm.io/gorm"
)

// TokenRepository stores issued refresh tokens.
type TokenRepository interface {
	SaveRefreshToken(token *authdomain.RefreshToken) error
	FindRefreshToken(token string) (*authdomain.RefreshToken, error)
	DeleteRefreshToken(token string) error
	DeleteRefreshTokensByAccount(accountID string) error
}

// tokenRepository implements TokenRepository interface
type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new instance of tokenRepository
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{
		db: db,
	}
}

// SaveRefreshToken adds a token without touching the account's other
// devices. Expired tokens of the account are cleaned up on the way.
func (r *tokenRepository) SaveRefreshToken(token *authdomain.RefreshToken) error {
	token.CreatedAt = time.Now()
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ? AND expires_at < ?", token.AccountID, time.Now()).Delete(&authdomain.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Create(token).Error
	})
}

func (r *tokenRepository) FindRefreshToken(token string) (*authdomain.RefreshToken, error) {
	var refreshToken authdomain.RefreshToken
	err := r.db.Where("token = ?", token).First(&refreshToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refreshToken, nil
}

func (r *tokenRepository) DeleteRefreshToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&authdomain.RefreshToken{}).Error
}

func (r *tokenRepository) DeleteRefreshTokensByAccount(accountID string) error {
	return r.db.Where("account_id = ?", accountID).Delete(&authdomain.RefreshToken{}).Error
}
