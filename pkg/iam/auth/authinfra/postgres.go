package authinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Abraxas-365/auralis/pkg/errx"
	"github.com/Abraxas-365/auralis/pkg/iam"
	"github.com/Abraxas-365/auralis/pkg/iam/auth"
	"github.com/Abraxas-365/auralis/pkg/kernel"
)

// PostgresUserRepository is the PostgreSQL implementation of UserRepository.
type PostgresUserRepository struct {
	db *sqlx.DB
}

// NewPostgresUserRepository creates the repository.
func NewPostgresUserRepository(db *sqlx.DB) auth.UserRepository {
	return &PostgresUserRepository{db: db}
}

type userPersistence struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func userToPersistence(u auth.User) userPersistence {
	return userPersistence{
		ID:           u.ID.String(),
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userToDomain(p userPersistence) auth.User {
	return auth.User{
		ID:           kernel.NewUserID(p.ID),
		Email:        p.Email,
		Name:         p.Name,
		PasswordHash: p.PasswordHash,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// SaveUser inserts a new user.
func (r *PostgresUserRepository) SaveUser(ctx context.Context, user auth.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES (:id, :email, :name, :password_hash, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, userToPersistence(user))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return iam.ErrEmailTaken()
		}
		return errx.Wrap(err, "failed to save user", errx.TypeInternal).
			WithDetail("user_id", user.ID.String())
	}
	return nil
}

// FindUserByEmail looks a user up by email.
func (r *PostgresUserRepository) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	var row userPersistence
	query := `SELECT * FROM users WHERE email = $1`
	err := r.db.GetContext(ctx, &row, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, iam.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by email", errx.TypeInternal)
	}
	user := userToDomain(row)
	return &user, nil
}

// FindUserByID looks a user up by id.
func (r *PostgresUserRepository) FindUserByID(ctx context.Context, id kernel.UserID) (*auth.User, error) {
	var row userPersistence
	query := `SELECT * FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, iam.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by id", errx.TypeInternal)
	}
	user := userToDomain(row)
	return &user, nil
}

// PostgresTokenRepository is the PostgreSQL implementation of TokenRepository.
type PostgresTokenRepository struct {
	db *sqlx.DB
}

// NewPostgresTokenRepository creates the repository.
func NewPostgresTokenRepository(db *sqlx.DB) auth.TokenRepository {
	return &PostgresTokenRepository{db: db}
}

type refreshTokenPersistence struct {
	ID        string    `db:"id"`
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
	IsRevoked bool      `db:"is_revoked"`
}

// SaveRefreshToken stores a freshly issued refresh token.
func (r *PostgresTokenRepository) SaveRefreshToken(ctx context.Context, token auth.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, token, user_id, expires_at, created_at, is_revoked)
		VALUES (:id, :token, :user_id, :expires_at, :created_at, :is_revoked)`

	row := refreshTokenPersistence{
		ID:        token.ID,
		Token:     token.Token,
		UserID:    token.UserID.String(),
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
		IsRevoked: token.IsRevoked,
	}

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return errx.Wrap(err, "failed to save refresh token", errx.TypeInternal)
	}
	return nil
}

// FindRefreshToken retrieves a refresh token by its value.
func (r *PostgresTokenRepository) FindRefreshToken(ctx context.Context, tokenValue string) (*auth.RefreshToken, error) {
	var row refreshTokenPersistence
	query := `SELECT * FROM refresh_tokens WHERE token = $1`
	err := r.db.GetContext(ctx, &row, query, tokenValue)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, auth.ErrInvalidRefreshToken()
		}
		return nil, errx.Wrap(err, "failed to find refresh token", errx.TypeInternal)
	}

	return &auth.RefreshToken{
		ID:        row.ID,
		Token:     row.Token,
		UserID:    kernel.NewUserID(row.UserID),
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
		IsRevoked: row.IsRevoked,
	}, nil
}

// RevokeRefreshToken marks a single token as revoked.
func (r *PostgresTokenRepository) RevokeRefreshToken(ctx context.Context, tokenValue string) error {
	query := `UPDATE refresh_tokens SET is_revoked = TRUE WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, query, tokenValue); err != nil {
		return errx.Wrap(err, "failed to revoke refresh token", errx.TypeInternal)
	}
	return nil
}

// RevokeAllUserTokens revokes every refresh token belonging to a user.
func (r *PostgresTokenRepository) RevokeAllUserTokens(ctx context.Context, userID kernel.UserID) error {
	query := `UPDATE refresh_tokens SET is_revoked = TRUE WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID.String()); err != nil {
		return errx.Wrap(err, "failed to revoke user tokens", errx.TypeInternal)
	}
	return nil
}
