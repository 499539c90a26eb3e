package usecase

import (
	"context"
	"errors"
	"time"

	accountdomain "inboxpilot-backend/internal/account/domain"
)

var ErrAccountNotFound = errors.New("account not found")

// CommandUsecase turns a free-text request into a mail or calendar action,
// or answers it as plain chat.
type CommandUsecase interface {
	Chat(ctx context.Context, accountID, prompt string) (*Reply, error)
}

// AccountStore is the account access the command runner needs.
type AccountStore interface {
	FindByID(id string) (*accountdomain.Account, error)
	UpdateTokens(accountID, accessToken, refreshToken string, expiry time.Time) error
}

// Reply is what the assistant answers. Action names the function that was
// executed, if any.
type Reply struct {
	Response string `json:"response"`
	Action   string `json:"action,omitempty"`
	ID       string `json:"id,omitempty"`
}
