package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	accountdomain "inboxpilot-backend/internal/account/domain"
	accountrepo "inboxpilot-backend/internal/account/repository"
	authdomain "inboxpilot-backend/internal/auth/domain"
	authdto "inboxpilot-backend/internal/auth/dto"
	"inboxpilot-backend/internal/auth/repository"
	"inboxpilot-backend/internal/mailbox"
	"inboxpilot-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	accounts  accountrepo.AccountRepository
	tokens    repository.TokenRepository
	fcmTokens repository.FCMTokenRepository
	google    GoogleOAuth
	imap      mailbox.Opener
	security  config.SecurityConfig
}

// NewAuthUsecase creates a new instance of authUsecase. google and imap may
// be nil when the matching sign-in method is disabled.
func NewAuthUsecase(
	accounts accountrepo.AccountRepository,
	tokens repository.TokenRepository,
	fcmTokens repository.FCMTokenRepository,
	google GoogleOAuth,
	imap mailbox.Opener,
	security config.SecurityConfig,
) AuthUsecase {
	return &authUsecase{
		accounts:  accounts,
		tokens:    tokens,
		fcmTokens: fcmTokens,
		google:    google,
		imap:      imap,
		security:  security,
	}
}

func (u *authUsecase) GoogleSignIn(ctx context.Context, code string) (*authdto.TokenResponse, error) {
	if u.google == nil {
		return nil, ErrGoogleDisabled
	}
	token, err := u.google.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	info, err := u.google.FetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	if !info.VerifiedEmail {
		return nil, ErrEmailNotVerified
	}

	acc, err := u.accounts.FindByEmail(info.Email)
	if err != nil {
		return nil, err
	}

	if acc == nil {
		acc = &accountdomain.Account{
			Email:        info.Email,
			Name:         info.Name,
			AvatarURL:    info.Picture,
			Provider:     mailbox.KindGoogle,
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			TokenExpiry:  token.Expiry,
		}
		if err := u.accounts.Create(acc); err != nil {
			return nil, err
		}
		logrus.Infof("[Auth] created Google account %s", acc.Email)
	} else {
		acc.Name = info.Name
		acc.AvatarURL = info.Picture
		acc.Provider = mailbox.KindGoogle
		acc.AccessToken = token.AccessToken
		acc.TokenExpiry = token.Expiry
		// Google only returns a refresh token on first consent.
		if token.RefreshToken != "" {
			acc.RefreshToken = token.RefreshToken
		}
		if err := u.accounts.UpdateProfile(acc); err != nil {
			return nil, err
		}
	}

	return u.generateTokens(acc)
}

// IMAPSignIn checks the app password by logging in before the account is
// stored.
func (u *authUsecase) IMAPSignIn(ctx context.Context, email, appPassword string) (*authdto.TokenResponse, error) {
	if u.imap == nil {
		return nil, errors.New("IMAP sign-in is not configured")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	appPassword = strings.ReplaceAll(appPassword, " ", "")

	sess, err := u.imap.Open(ctx, mailbox.Credentials{
		Kind:        mailbox.KindIMAP,
		Email:       email,
		AppPassword: appPassword,
	})
	if err != nil {
		logrus.Warnf("[Auth] IMAP login failed for %s: %v", email, err)
		return nil, ErrInvalidCredentials
	}
	_ = sess.Close()

	acc, err := u.accounts.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &accountdomain.Account{
			Email:       email,
			Name:        strings.Split(email, "@")[0],
			Provider:    mailbox.KindIMAP,
			AppPassword: appPassword,
		}
		if err := u.accounts.Create(acc); err != nil {
			return nil, err
		}
		logrus.Infof("[Auth] created IMAP account %s", acc.Email)
	} else {
		acc.Provider = mailbox.KindIMAP
		acc.AppPassword = appPassword
		if err := u.accounts.UpdateProfile(acc); err != nil {
			return nil, err
		}
	}

	return u.generateTokens(acc)
}

func (u *authUsecase) RefreshToken(refreshToken string) (*authdto.TokenResponse, error) {
	claims, err := u.parse(refreshToken)
	if err != nil {
		return nil, err
	}

	storedToken, err := u.tokens.FindRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if storedToken == nil || storedToken.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("refresh token expired")
	}

	accountID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	acc, err := u.accounts.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, errors.New("user not found")
	}

	// Rotate: the presented token is spent.
	if err := u.tokens.DeleteRefreshToken(refreshToken); err != nil {
		return nil, err
	}
	return u.generateTokens(acc)
}

func (u *authUsecase) Logout(refreshToken string) error {
	return u.tokens.DeleteRefreshToken(refreshToken)
}

func (u *authUsecase) ValidateToken(tokenString string) (*accountdomain.Account, error) {
	claims, err := u.parse(tokenString)
	if err != nil {
		return nil, err
	}
	accountID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	acc, err := u.accounts.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, errors.New("user not found")
	}
	return acc, nil
}

func (u *authUsecase) RegisterFCMToken(accountID, token, deviceInfo string) error {
	return u.fcmTokens.Register(accountID, token, deviceInfo)
}

func (u *authUsecase) UnregisterFCMToken(accountID, token string) (bool, error) {
	return u.fcmTokens.Unregister(accountID, token)
}

func (u *authUsecase) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(u.security.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (u *authUsecase) generateTokens(acc *accountdomain.Account) (*authdto.TokenResponse, error) {
	accessToken, err := u.generateAccessToken(acc)
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.generateRefreshToken(acc)
	if err != nil {
		return nil, err
	}

	refreshTokenEntity := &authdomain.RefreshToken{
		Token:     refreshToken,
		AccountID: acc.ID,
		ExpiresAt: time.Now().Add(u.security.JWTRefreshExpiry),
	}
	if err := u.tokens.SaveRefreshToken(refreshTokenEntity); err != nil {
		return nil, err
	}

	return &authdto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         acc,
	}, nil
}

func (u *authUsecase) generateAccessToken(acc *accountdomain.Account) (string, error) {
	claims := jwt.MapClaims{
		"user_id": acc.ID,
		"email":   acc.Email,
		"exp":     time.Now().Add(u.security.JWTAccessExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.security.JWTSecret))
}

func (u *authUsecase) generateRefreshToken(acc *accountdomain.Account) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  acc.ID,
		"token_id": uuid.New().String(),
		"exp":      time.Now().Add(u.security.JWTRefreshExpiry).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.security.JWTSecret))
}
