package dto

import "time"

type AdminTokenRequest struct {
	AdminToken string `json:"admin_token" binding:"required"`
}

type AdminTokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
