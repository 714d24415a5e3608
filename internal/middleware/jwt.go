package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/toybank/toybank/internal/auth"
	"github.com/toybank/toybank/internal/identity"
	"github.com/toybank/toybank/internal/respond"
)

// UserLookup resolves the live user behind a token subject.
type UserLookup interface {
	Get(ctx context.Context, id string) (identity.User, error)
}

// JWTAuth validates the session token from the Authorization header or the
// session cookie, and rejects tokens older than the user's token version.
func JWTAuth(tokens *auth.Service, users UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" {
			raw = c.Cookies(auth.SessionCookie)
		}
		if raw == "" {
			return respond.Fail(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Token not found")
		}
		claims, err := tokens.Parse(raw)
		if err != nil {
			return respond.Fail(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid token")
		}

		user, err := users.Get(c.UserContext(), claims.Subject)
		if err != nil || !user.Active() || user.TokenVersion != claims.Version {
			return respond.Fail(c, http.StatusUnauthorized, respond.CodeUnauthorized, "User not found, try logging in again")
		}

		c.Locals("user_id", user.ID)
		c.Locals("username", user.Username)
		return c.Next()
	}
}

// RequireGrant admits the request only with a grant for purpose issued to the
// authenticated user. Must run after JWTAuth.
func RequireGrant(tokens *auth.Service, cookie, purpose string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(cookie)
		if raw == "" {
			raw = c.Get("X-Grant-Token")
		}
		if raw == "" {
			return respond.Fail(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Verification token not found")
		}
		claims, err := tokens.ParseGrant(raw, purpose)
		if err != nil {
			return respond.Fail(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid verification token")
		}
		if uid, _ := c.Locals("user_id").(string); uid != claims.Subject {
			return respond.Fail(c, http.StatusForbidden, respond.CodeForbidden, "Invalid request")
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	authz := c.Get(fiber.HeaderAuthorization)
	if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("bearer "):])
}
