package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/service"
	"github.com/noah-isme/gema-lms-gateway/internal/utils"
)

// AdminAssessmentHandler manages assessments, answer keys included.
type AdminAssessmentHandler struct {
	service service.AssessmentService
	logger  zerolog.Logger
}

// NewAdminAssessmentHandler constructs the handler.
func NewAdminAssessmentHandler(service service.AssessmentService, logger zerolog.Logger) *AdminAssessmentHandler {
	return &AdminAssessmentHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_assessment_handler").Logger(),
	}
}

// Register attaches assessment routes to the router group.
func (h *AdminAssessmentHandler) Register(router fiber.Router) {
	router.Get("/assessments", h.list)
	router.Get("/assessments/:id", h.get)
	router.Post("/assessments", h.create)
	router.Put("/assessments/:id", h.update)
	router.Delete("/assessments/:id", h.delete)
}

func (h *AdminAssessmentHandler) list(c *fiber.Ctx) error {
	assessments, err := h.service.List(c.UserContext(), strings.TrimSpace(c.Query("courseId")))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "assessments retrieved", assessments)
}

func (h *AdminAssessmentHandler) get(c *fiber.Ctx) error {
	assessment, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "assessment retrieved", assessment)
}

func (h *AdminAssessmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssessmentInput
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	assessment, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusCreated, "assessment created", assessment)
}

func (h *AdminAssessmentHandler) update(c *fiber.Ctx) error {
	var payload dto.AssessmentInput
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	assessment, err := h.service.Update(c.UserContext(), c.Params("id"), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "assessment updated", assessment)
}

func (h *AdminAssessmentHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "assessment deleted", nil)
}
