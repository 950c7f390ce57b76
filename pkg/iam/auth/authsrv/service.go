package authsrv

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Abraxas-365/auralis/pkg/iam"
	"github.com/Abraxas-365/auralis/pkg/iam/auth"
	"github.com/Abraxas-365/auralis/pkg/kernel"
	"github.com/Abraxas-365/auralis/pkg/logx"
)

// Service implements email/password authentication with JWT sessions.
type Service struct {
	users      auth.UserRepository
	tokens     auth.TokenRepository
	jwt        auth.TokenService
	middleware *auth.TokenMiddleware
}

// NewService creates the authentication service.
func NewService(users auth.UserRepository, tokens auth.TokenRepository, jwt auth.TokenService) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		jwt:        jwt,
		middleware: auth.NewAuthMiddleware(jwt),
	}
}

// Middleware exposes the JWT middleware for other route groups.
func (s *Service) Middleware() *auth.TokenMiddleware {
	return s.middleware
}

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries the refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*auth.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, iam.ErrInvalidCredentials().WithDetail("reason", "invalid email")
	}
	if len(req.Password) < 8 {
		return nil, auth.ErrWeakPassword()
	}

	if existing, _ := s.users.FindUserByEmail(ctx, email); existing != nil {
		return nil, iam.ErrEmailTaken()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, auth.ErrTokenGenerationFailed().WithDetail("error", err.Error())
	}

	now := time.Now().UTC()
	user := auth.User{
		ID:           kernel.NewUserID(uuid.NewString()),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	logx.WithField("user_id", user.ID.String()).Info("auth: user registered")
	return &user, nil
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*auth.TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, iam.ErrInvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, iam.ErrInvalidCredentials()
	}

	return s.issueTokens(ctx, user)
}

// Refresh exchanges a valid refresh token for a new token pair. The used
// refresh token is revoked (rotation).
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	stored, err := s.tokens.FindRefreshToken(ctx, refreshToken)
	if err != nil || stored == nil {
		return nil, auth.ErrInvalidRefreshToken()
	}
	if !stored.IsValid() {
		return nil, auth.ErrExpiredRefreshToken()
	}

	user, err := s.users.FindUserByID(ctx, stored.UserID)
	if err != nil || user == nil {
		return nil, iam.ErrUserNotFound()
	}

	if err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes every refresh token of the user.
func (s *Service) Logout(ctx context.Context, userID kernel.UserID) error {
	return s.tokens.RevokeAllUserTokens(ctx, userID)
}

// Me returns the account behind an auth context.
func (s *Service) Me(ctx context.Context, userID kernel.UserID) (*auth.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil || user == nil {
		return nil, iam.ErrUserNotFound()
	}
	return user, nil
}

func (s *Service) issueTokens(ctx context.Context, user *auth.User) (*auth.TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refresh, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.tokens.SaveRefreshToken(ctx, auth.RefreshToken{
		ID:        uuid.NewString(),
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.jwt.RefreshTokenTTL()),
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	return &auth.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.jwt.AccessTokenTTLSeconds(),
	}, nil
}

// ---------------------------------------------------------------------------
// HTTP surface — /auth/*
// ---------------------------------------------------------------------------

// RegisterRoutes mounts the auth endpoints on the app.
func (s *Service) RegisterRoutes(app *fiber.App) {
	grp := app.Group("/auth")
	grp.Post("/register", s.handleRegister)
	grp.Post("/login", s.handleLogin)
	grp.Post("/refresh", s.handleRefresh)
	grp.Post("/logout", s.middleware.Authenticate(), s.handleLogout)
	grp.Get("/me", s.middleware.Authenticate(), s.handleMe)
}

func (s *Service) handleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user, err := s.Register(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (s *Service) handleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	pair, err := s.Login(c.Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(pair)
}

func (s *Service) handleRefresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return fiber.NewError(fiber.StatusBadRequest, "refresh_token is required")
	}

	pair, err := s.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(pair)
}

func (s *Service) handleLogout(c *fiber.Ctx) error {
	authCtx, err := auth.AuthFromLocals(c)
	if err != nil {
		return err
	}
	if err := s.Logout(c.Context(), authCtx.UserID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Service) handleMe(c *fiber.Ctx) error {
	authCtx, err := auth.AuthFromLocals(c)
	if err != nil {
		return err
	}
	user, err := s.Me(c.Context(), authCtx.UserID)
	if err != nil {
		return err
	}
	return c.JSON(user)
}
