package dto

import accountdomain "inboxpilot-backend/internal/account/domain"

// GoogleSignInRequest carries the authorization code from the Google
// consent popup.
type GoogleSignInRequest struct {
	Code string `json:"code" binding:"required"`
}

type IMAPSignInRequest struct {
	Email       string `json:"email" binding:"required,email"`
	AppPassword string `json:"app_password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type RegisterFCMRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

type TokenResponse struct {
	AccessToken  string                 `json:"access_token"`
	RefreshToken string                 `json:"refresh_token"`
	User         *accountdomain.Account `json:"user"`
}
