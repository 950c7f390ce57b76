package auth

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/auralis/pkg/errx"
	"github.com/Abraxas-365/auralis/pkg/kernel"
)

// User is an account that can log in and own transcripts.
type User struct {
	ID           kernel.UserID `db:"id" json:"id"`
	Email        string        `db:"email" json:"email"`
	Name         string        `db:"name" json:"name"`
	PasswordHash string        `db:"password_hash" json:"-"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// RefreshToken represents a refresh token
type RefreshToken struct {
	ID        string        `db:"id" json:"id"`
	Token     string        `db:"token" json:"token"`
	UserID    kernel.UserID `db:"user_id" json:"user_id"`
	ExpiresAt time.Time     `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	IsRevoked bool          `db:"is_revoked" json:"is_revoked"`
}

// IsExpired checks if the refresh token has expired
func (r *RefreshToken) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// IsValid checks if the refresh token is valid
func (r *RefreshToken) IsValid() bool {
	return !r.IsRevoked && !r.IsExpired()
}

// TokenClaims represents validated JWT claims
type TokenClaims struct {
	UserID    kernel.UserID `json:"user_id"`
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	IssuedAt  time.Time     `json:"iat"`
	ExpiresAt time.Time     `json:"exp"`
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeInvalidRefreshToken   = ErrRegistry.Register("INVALID_REFRESH_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid refresh token")
	CodeExpiredRefreshToken   = ErrRegistry.Register("EXPIRED_REFRESH_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Expired refresh token")
	CodeTokenGenerationFailed = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token generation failed")
	CodeTokenValidationFailed = ErrRegistry.Register("TOKEN_VALIDATION_FAILED", errx.TypeAuthorization, http.StatusUnauthorized, "Token validation failed")
	CodeWeakPassword          = ErrRegistry.Register("WEAK_PASSWORD", errx.TypeValidation, http.StatusBadRequest, "Password must be at least 8 characters")
)

func ErrInvalidRefreshToken() *errx.Error {
	return ErrRegistry.New(CodeInvalidRefreshToken)
}

func ErrExpiredRefreshToken() *errx.Error {
	return ErrRegistry.New(CodeExpiredRefreshToken)
}

func ErrTokenGenerationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenGenerationFailed)
}

func ErrTokenValidationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenValidationFailed)
}

func ErrWeakPassword() *errx.Error {
	return ErrRegistry.New(CodeWeakPassword)
}
