package domain

import "time"

// RefreshToken is an issued refresh JWT. One row per signed-in device.
type RefreshToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	AccountID string    `json:"account_id" gorm:"index;not null"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
