package domain

import (
	"time"

	classdomain "inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/internal/mailbox"

	"golang.org/x/oauth2"
)

// Account is a connected mailbox together with everything the sync
// pipeline persists for it. Buckets, Ledger, LastHistoryID, StyleProfile,
// Watching and ProcessedEmails are written together in one save, guarded
// by Version.
type Account struct {
	ID        string `json:"id" gorm:"primaryKey"`
	Email     string `json:"email" gorm:"uniqueIndex;not null"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Provider  string `json:"provider"` // "google" or "imap"

	AccessToken  string    `json:"-" gorm:"type:text"`
	RefreshToken string    `json:"-" gorm:"type:text"`
	TokenExpiry  time.Time `json:"-"`
	AppPassword  string    `json:"-" gorm:"type:text"`

	StyleProfile    string              `json:"style_profile,omitempty" gorm:"type:text"`
	LastHistoryID   uint64              `json:"last_history_id"`
	Watching        bool                `json:"watching"`
	ProcessedEmails int                 `json:"processed_emails"`
	Buckets         classdomain.Buckets `json:"-" gorm:"type:text"`
	Ledger          classdomain.Ledger  `json:"-" gorm:"type:text"`
	Version         int64               `json:"-" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the pipeline state.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Buckets = a.Buckets.Clone()
	cp.Ledger = a.Ledger.Clone()
	return &cp
}

// Credentials builds what a mail provider needs to open a session.
func (a *Account) Credentials(onRefresh func(*oauth2.Token) error) mailbox.Credentials {
	kind := a.Provider
	if kind == "" {
		kind = mailbox.KindGoogle
	}
	return mailbox.Credentials{
		Kind:           kind,
		Email:          a.Email,
		AccessToken:    a.AccessToken,
		RefreshToken:   a.RefreshToken,
		AppPassword:    a.AppPassword,
		OnTokenRefresh: onRefresh,
	}
}
