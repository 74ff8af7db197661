package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/session"
	"github.com/noah-isme/gema-lms-gateway/internal/utils"
)

// SessionRestorer resolves bearer tokens into sessions.
type SessionRestorer interface {
	Restore(ctx context.Context, token string) (session.Session, error)
}

// LoginRedirect is the hint returned with every 401 so clients can send users back
// to sign in.
var LoginRedirect = fiber.Map{"redirect": "/login"}

// Authenticate restores the session behind the bearer token. Anonymous requests pass
// through; a token that no longer maps to a session is rejected.
func Authenticate(store SessionRestorer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return c.Next()
		}

		current, err := store.Restore(c.UserContext(), token)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrTokenExpired), errors.Is(err, lmsclient.ErrUnauthorized):
			return utils.SendErrorWithData(c, fiber.StatusUnauthorized, "session expired", LoginRedirect)
		case errors.Is(err, lmsclient.ErrTransport):
			return utils.SendError(c, fiber.StatusServiceUnavailable, "unable to reach the learning server")
		default:
			return utils.SendError(c, fiber.StatusBadGateway, "unable to restore session")
		}

		c.Locals("session", current)
		c.Locals("token", token)
		c.Locals("user_id", current.User.ID)
		c.Locals("user_role", current.User.NormalizedRole())
		c.SetUserContext(lmsclient.WithToken(c.UserContext(), token))
		return c.Next()
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *fiber.Ctx) string {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	const bearer = "bearer "
	if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return ""
	}
	return strings.TrimSpace(authorization[len(bearer):])
}

// SessionFrom returns the session restored for the request.
func SessionFrom(c *fiber.Ctx) (session.Session, bool) {
	current, ok := c.Locals("session").(session.Session)
	return current, ok
}
