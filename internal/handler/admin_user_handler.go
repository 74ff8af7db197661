package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/middleware"
	"github.com/noah-isme/gema-lms-gateway/internal/service"
	"github.com/noah-isme/gema-lms-gateway/internal/utils"
)

// AdminUserHandler manages accounts. Only administrators may use it.
type AdminUserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewAdminUserHandler constructs the handler.
func NewAdminUserHandler(service service.UserService, logger zerolog.Logger) *AdminUserHandler {
	return &AdminUserHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_user_handler").Logger(),
	}
}

// Register attaches user routes to the router group.
func (h *AdminUserHandler) Register(router fiber.Router) {
	adminOnly := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Get("/users", middleware.WithAuth(h.list, adminOnly))
	router.Get("/users/:id", middleware.WithAuth(h.get, adminOnly))
	router.Put("/users/:id", middleware.WithAuth(h.update, adminOnly))
	router.Delete("/users/:id", middleware.WithAuth(h.delete, adminOnly))
}

func (h *AdminUserHandler) list(c *fiber.Ctx) error {
	role := strings.ToLower(strings.TrimSpace(c.Query("role")))
	users, err := h.service.List(c.UserContext(), role)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "users retrieved", users)
}

func (h *AdminUserHandler) get(c *fiber.Ctx) error {
	user, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "user retrieved", user)
}

func (h *AdminUserHandler) update(c *fiber.Ctx) error {
	var payload dto.UserUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.Update(c.UserContext(), c.Params("id"), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "user updated", user)
}

func (h *AdminUserHandler) delete(c *fiber.Ctx) error {
	if c.Params("id") == userIDFromContext(c) {
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "you cannot delete your own account")
	}
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "user deleted", nil)
}
