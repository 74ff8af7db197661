package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/service"
	"github.com/noah-isme/gema-lms-gateway/internal/utils"
)

// AdminDashboardHandler serves the admin dashboard and analytics.
type AdminDashboardHandler struct {
	service service.AdminService
	logger  zerolog.Logger
}

// NewAdminDashboardHandler constructs the handler.
func NewAdminDashboardHandler(service service.AdminService, logger zerolog.Logger) *AdminDashboardHandler {
	return &AdminDashboardHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_dashboard_handler").Logger(),
	}
}

// Register attaches dashboard routes to the router group.
func (h *AdminDashboardHandler) Register(router fiber.Router) {
	router.Get("/dashboard", h.dashboard)
	router.Get("/analytics", h.analytics)
}

func (h *AdminDashboardHandler) dashboard(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	if limit > 50 {
		limit = 50
	}

	dashboard, err := h.service.Dashboard(c.UserContext(), limit)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "dashboard retrieved", dashboard)
}

func (h *AdminDashboardHandler) analytics(c *fiber.Ctx) error {
	analytics, err := h.service.Analytics(c.UserContext(), strings.TrimSpace(c.Query("period")))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "analytics retrieved", analytics)
}
