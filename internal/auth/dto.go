package auth

import (
	"time"

	"github.com/smes-pos/smes-backend/internal/users"
)

const tokenTypeBearer = "Bearer"

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// RefreshRequest is the body of POST /auth/refresh. The expired access
// token travels in the Authorization header.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse is returned by login and refresh. ExpiresAt/ExpiresIn describe
// the access token; the refresh token lives until it is rotated or revoked.
type TokenResponse struct {
	TokenType    string         `json:"token_type"`
	AccessToken  string         `json:"access_token"`
	ExpiresIn    int            `json:"expires_in"`
	ExpiresAt    time.Time      `json:"expires_at"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}
