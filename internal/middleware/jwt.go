package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kolopay/kolopay/internal/auth"
	"github.com/kolopay/kolopay/internal/identity"
)

// JWTAuth returns a middleware that validates JWT access tokens and checks
// the token version against the identity store, so logout invalidates any
// tokens issued before it.
func JWTAuth(authSvc *auth.Service, repo identity.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := authSvc.VerifyAccess(tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		user, err := repo.FindByID(c.UserContext(), claims.Subject)
		if err != nil || user.TokenVersion != claims.TokenVersion {
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		}

		c.Locals("user_id", claims.Subject)
		c.Locals("token_version", claims.TokenVersion)
		return c.Next()
	}
}
