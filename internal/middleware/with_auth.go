package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
	"github.com/noah-isme/gema-lms-gateway/internal/utils"
)

// Auth role constants used by WithAuth.
const (
	AuthRoleAny        = "any"
	AuthRoleAdmin      = models.RoleAdmin
	AuthRoleInstructor = models.RoleInstructor
	AuthRoleStudent    = models.RoleStudent
	// AuthRoleStaff admits admins and instructors.
	AuthRoleStaff = "staff"
)

// AuthOptions configures WithAuth.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a single handler with authentication and role guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}
	requireUser := opts.RequireUser || role != AuthRoleAny

	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if requireUser && userID == "" {
			return utils.SendErrorWithData(c, fiber.StatusUnauthorized, "authentication required", LoginRedirect)
		}

		current := normalizeRoleValue(c.Locals("user_role"))
		switch role {
		case AuthRoleAny:
		case AuthRoleStaff:
			if current != models.RoleAdmin && current != models.RoleInstructor {
				return utils.Fail(c, fiber.StatusForbidden, lmsclient.ErrForbidden.Error(), nil)
			}
		default:
			if current != role {
				return utils.Fail(c, fiber.StatusForbidden, lmsclient.ErrForbidden.Error(), nil)
			}
		}

		return handler(c)
	}
}
