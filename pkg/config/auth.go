package config

import "time"

// AuthConfig configures JWT issuance.
type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret-change-me"),
		AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
	}
}
