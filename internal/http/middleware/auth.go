package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"catalogue/internal/auth"
)

const (
	// UserIDLocalKey holds the authenticated user's ID.
	UserIDLocalKey = "user_id"
	// RolesLocalKey holds the authenticated user's role names.
	RolesLocalKey = "roles"

	accessTokenHeader = "x-access-token"
)

// TokenParser verifies an access token.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid token with 401. The token is read from
// "Authorization: Bearer <token>" or the x-access-token header.
func RequireAuth(tokens TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c.Get(fiber.HeaderAuthorization))
		if raw == "" {
			raw = c.Get(accessTokenHeader)
		}
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "no token provided")
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(UserIDLocalKey, claims.Subject)
		c.Locals(RolesLocalKey, claims.Roles)
		return c.Next()
	}
}

// RequireRoles lets the request through when the authenticated user holds any of roles.
// It must run after RequireAuth.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		held, _ := c.Locals(RolesLocalKey).([]string)
		for _, h := range held {
			for _, r := range roles {
				if h == r {
					return c.Next()
				}
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "require role: "+strings.Join(roles, " or "))
	}
}

// UserIDFrom returns the user ID stored by RequireAuth.
func UserIDFrom(c *fiber.Ctx) string {
	s, _ := c.Locals(UserIDLocalKey).(string)
	return s
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
