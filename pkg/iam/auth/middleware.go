package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Abraxas-365/auralis/pkg/iam"
	"github.com/Abraxas-365/auralis/pkg/kernel"
)

// TokenMiddleware validates JWTs on protected Fiber routes.
type TokenMiddleware struct {
	tokenService TokenService
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(tokenService TokenService) *TokenMiddleware {
	return &TokenMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate validates the bearer token and stores an AuthContext in Locals.
func (am *TokenMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string

		authHeader := c.Get("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
				token = parts[1]
			}
		}
		if token == "" {
			// Fallback: browser clients keep the token in a cookie
			token = c.Cookies("access_token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": iam.ErrUnauthorized().Error(),
			})
		}

		claims, err := am.tokenService.ValidateAccessToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": iam.ErrInvalidToken().Error(),
			})
		}

		authContext := &kernel.AuthContext{
			UserID: claims.UserID,
			Email:  claims.Email,
			Name:   claims.Name,
		}
		c.Locals("auth", authContext)

		return c.Next()
	}
}

// AuthFromLocals retrieves the AuthContext stored by Authenticate.
func AuthFromLocals(c *fiber.Ctx) (*kernel.AuthContext, error) {
	authContext, ok := c.Locals("auth").(*kernel.AuthContext)
	if !ok || authContext == nil || !authContext.IsValid() {
		return nil, iam.ErrUnauthorized()
	}
	return authContext, nil
}
