package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/middleware"
	"github.com/noah-isme/gema-lms-gateway/internal/service"
	"github.com/noah-isme/gema-lms-gateway/internal/utils"
)

// AttemptHandler exposes timed assessment attempts.
type AttemptHandler struct {
	attempts  service.AttemptService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAttemptHandler constructs the handler.
func NewAttemptHandler(attempts service.AttemptService, validate *validator.Validate, logger zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts:  attempts,
		validator: validate,
		logger:    logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// Register attaches attempt routes to the router group.
func (h *AttemptHandler) Register(router fiber.Router) {
	signedIn := middleware.AuthOptions{RequireUser: true}

	router.Post("/assessments/:id/attempts", middleware.WithAuth(h.start, signedIn))
	router.Get("/attempts/:id", middleware.WithAuth(h.get, signedIn))
	router.Put("/attempts/:id/answers", middleware.WithAuth(h.saveAnswers, signedIn))
	router.Post("/attempts/:id/submit", middleware.WithAuth(h.submit, signedIn))
	router.Delete("/attempts/:id", middleware.WithAuth(h.abandon, signedIn))
}

func (h *AttemptHandler) start(c *fiber.Ctx) error {
	view, err := h.attempts.Start(c.UserContext(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusCreated, "attempt started", view)
}

func (h *AttemptHandler) get(c *fiber.Ctx) error {
	view, err := h.attempts.Get(c.UserContext(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "attempt retrieved", view)
}

func (h *AttemptHandler) saveAnswers(c *fiber.Ctx) error {
	var payload dto.AnswersRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	view, err := h.attempts.SaveAnswers(c.UserContext(), userIDFromContext(c), c.Params("id"), payload.Answers)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "answers saved", view)
}

func (h *AttemptHandler) submit(c *fiber.Ctx) error {
	result, err := h.attempts.Submit(c.UserContext(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	message := "assessment submitted"
	if result.Score.Passed {
		message = "assessment passed"
	}
	return success(c, fiber.StatusOK, message, result)
}

func (h *AttemptHandler) abandon(c *fiber.Ctx) error {
	if err := h.attempts.Abandon(c.UserContext(), userIDFromContext(c), c.Params("id")); err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "attempt abandoned", nil)
}
