// Package googleauth builds OAuth2 HTTP clients for Google APIs from stored
// account tokens.
package googleauth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	oauthapi "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is called whenever the token source hands out a new
// access token.
type TokenUpdateFunc func(*oauth2.Token) error

// Scopes requested at sign-in.
var Scopes = []string{
	gmailapi.GmailModifyScope,
	gmailapi.GmailComposeScope,
	gmailapi.GmailLabelsScope,
	"https://www.googleapis.com/auth/calendar.events",
	oauthapi.UserinfoEmailScope,
	oauthapi.UserinfoProfileScope,
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Service exchanges authorization codes and builds authorized clients.
type Service struct {
	oauth *oauth2.Config
}

func NewService(cfg Config) *Service {
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		},
	}
}

type notifyTokenSource struct {
	mu       sync.Mutex
	src      oauth2.TokenSource
	current  string
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback != nil && s.current != t.AccessToken {
		s.current = t.AccessToken
		if err := s.callback(t); err != nil {
			logrus.Warnf("[OAuth] failed to store refreshed token: %v", err)
		}
	}
	return t, nil
}

// HTTPClient returns a client that refreshes the access token as needed and
// reports new tokens to onRefresh.
func (s *Service) HTTPClient(ctx context.Context, accessToken, refreshToken string, onRefresh TokenUpdateFunc) *http.Client {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}
	// Stored tokens carry no reliable expiry; refresh on first use when we can.
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	src := &notifyTokenSource{
		src:      s.oauth.TokenSource(ctx, token),
		current:  accessToken,
		callback: onRefresh,
	}
	return oauth2.NewClient(ctx, src)
}

// Exchange trades an authorization code for tokens.
func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.oauth.Exchange(ctx, code, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// UserInfo is the profile returned by the userinfo endpoint.
type UserInfo struct {
	Email         string
	Name          string
	Picture       string
	VerifiedEmail bool
}

// FetchUserInfo reads the profile of the token's owner.
func (s *Service) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	srv, err := oauthapi.NewService(ctx, option.WithTokenSource(s.oauth.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("unable to create oauth2 service: %w", err)
	}
	info, err := srv.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to fetch user info: %w", err)
	}
	verified := info.VerifiedEmail != nil && *info.VerifiedEmail
	return &UserInfo{
		Email:         info.Email,
		Name:          info.Name,
		Picture:       info.Picture,
		VerifiedEmail: verified,
	}, nil
}
