package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vouchpay/vouchpay/internal/identity"
)

const principalKey = "principal"

// Authenticate validates the bearer token and stores the caller's principal
// in the request locals.
func Authenticate(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		principal, err := identity.ParseToken(token, secret)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// RequireRole rejects callers whose role is not in the allowed set.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := Principal(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		for _, role := range roles {
			if p.Role == role {
				return c.Next()
			}
		}
		return fiber.NewError(http.StatusForbidden, "insufficient role")
	}
}

// Principal returns the authenticated caller set by Authenticate.
func Principal(c *fiber.Ctx) (identity.Principal, bool) {
	p, ok := c.Locals(principalKey).(identity.Principal)
	return p, ok
}
