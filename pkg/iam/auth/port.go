package auth

import (
	"context"
	"time"

	"github.com/Abraxas-365/auralis/pkg/kernel"
)

// UserRepository defines the contract for user persistence
type UserRepository interface {
	SaveUser(ctx context.Context, user User) error
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id kernel.UserID) (*User, error)
}

// TokenRepository defines the contract for refresh token persistence
type TokenRepository interface {
	SaveRefreshToken(ctx context.Context, token RefreshToken) error
	FindRefreshToken(ctx context.Context, tokenValue string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenValue string) error
	RevokeAllUserTokens(ctx context.Context, userID kernel.UserID) error
}

// TokenService defines the contract for JWT token management
type TokenService interface {
	GenerateAccessToken(user *User) (string, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
	GenerateRefreshToken(userID kernel.UserID) (string, error)
	AccessTokenTTLSeconds() int64
	RefreshTokenTTL() time.Duration
}
