package usecase

import (
	"context"
	"errors"

	accountdomain "inboxpilot-backend/internal/account/domain"
	authdto "inboxpilot-backend/internal/auth/dto"
	"inboxpilot-backend/pkg/googleauth"

	"golang.org/x/oauth2"
)

var (
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailNotVerified   = errors.New("google email is not verified")
	ErrInvalidCredentials = errors.New("invalid email or app password")
	ErrGoogleDisabled     = errors.New("google sign-in is not configured")
)

// AuthUsecase defines the interface for sign-in and session tokens
type AuthUsecase interface {
	GoogleSignIn(ctx context.Context, code string) (*authdto.TokenResponse, error)
	IMAPSignIn(ctx context.Context, email, appPassword string) (*authdto.TokenResponse, error)
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)
	Logout(refreshToken string) error
	ValidateToken(tokenString string) (*accountdomain.Account, error)

	RegisterFCMToken(accountID, token, deviceInfo string) error
	UnregisterFCMToken(accountID, token string) (bool, error)
}

// GoogleOAuth is the OAuth code flow used by GoogleSignIn.
type GoogleOAuth interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleauth.UserInfo, error)
}
