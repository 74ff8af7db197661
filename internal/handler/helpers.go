package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/fetch"
	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/middleware"
	"github.com/noah-isme/gema-lms-gateway/internal/progress"
	"github.com/noah-isme/gema-lms-gateway/internal/repository"
	"github.com/noah-isme/gema-lms-gateway/internal/service"
	"github.com/noah-isme/gema-lms-gateway/internal/utils"
)

// responseMeta carries the notifications raised while serving a request.
type responseMeta struct {
	Notifications []service.Notification `json:"notifications,omitempty"`
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func userIDFromContext(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(string); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

func tokenFromContext(c *fiber.Ctx) string {
	if token, ok := c.Locals("token").(string); ok {
		return token
	}
	return ""
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		field := fieldErr.Field()
		if field == "" {
			field = fieldErr.StructField()
		}
		if field == "" {
			continue
		}
		message := fieldErr.Tag()
		if fieldErr.Param() != "" {
			message += "=" + fieldErr.Param()
		}
		details[strings.ToLower(field[:1])+field[1:]] = message
	}
	return details
}

// success writes the envelope and attaches any notifications raised by the services.
func success(c *fiber.Ctx, status int, message string, data interface{}) error {
	var meta interface{}
	if items := middleware.RecorderFrom(c).Items(); len(items) > 0 {
		meta = responseMeta{Notifications: items}
	}
	if status == 0 {
		status = fiber.StatusOK
	}
	if status == fiber.StatusOK {
		return utils.OK(c, data, message, meta)
	}
	return c.Status(status).JSON(utils.APIResponse{Success: true, Data: data, Message: message, Meta: meta})
}

var errorStatuses = []struct {
	target error
	status int
}{
	{service.ErrUploadKind, fiber.StatusBadRequest},
	{service.ErrUnsupportedPeriod, fiber.StatusBadRequest},
	{service.ErrAlreadyEnrolled, fiber.StatusConflict},
	{service.ErrAttemptClosed, fiber.StatusConflict},
	{fetch.ErrSuperseded, fiber.StatusConflict},
	{progress.ErrAssessmentLocked, fiber.StatusUnprocessableEntity},
	{progress.ErrMaxAttemptsReached, fiber.StatusUnprocessableEntity},
	{progress.ErrNoQuestions, fiber.StatusUnprocessableEntity},
	{service.ErrNotEnrolled, fiber.StatusUnprocessableEntity},
	{service.ErrAttemptExpired, fiber.StatusUnprocessableEntity},
	{service.ErrUnknownQuestion, fiber.StatusUnprocessableEntity},
	{service.ErrContentNotInCourse, fiber.StatusUnprocessableEntity},
	{service.ErrUploadTooLarge, fiber.StatusRequestEntityTooLarge},
	{service.ErrUploadTypeNotAllowed, fiber.StatusUnsupportedMediaType},
}

// handleError translates service and upstream errors into responses. Messages from the
// LMS server are surfaced verbatim.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	switch {
	case errors.Is(err, lmsclient.ErrUnauthorized):
		return utils.SendErrorWithData(c, fiber.StatusUnauthorized, "session expired", middleware.LoginRedirect)
	case errors.Is(err, lmsclient.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, lmsclient.ErrForbidden.Error())
	case errors.Is(err, repository.ErrAttemptNotFound):
		return utils.SendError(c, fiber.StatusNotFound, repository.ErrAttemptNotFound.Error())
	case errors.Is(err, lmsclient.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, service.UserMessage(err))
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, service.ErrInvalidAssessment):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	for _, rule := range errorStatuses {
		if errors.Is(err, rule.target) {
			return utils.SendError(c, rule.status, rule.target.Error())
		}
	}

	switch {
	case errors.Is(err, lmsclient.ErrTransport):
		return utils.SendError(c, fiber.StatusServiceUnavailable, service.UserMessage(err))
	case errors.Is(err, lmsclient.ErrDecode):
		return utils.SendError(c, fiber.StatusBadGateway, lmsclient.ErrDecode.Error())
	}

	if apiErr, ok := lmsclient.AsAPIError(err); ok {
		if apiErr.StatusCode < fiber.StatusInternalServerError {
			var details interface{}
			if len(apiErr.Fields) > 0 {
				details = apiErr.Fields
			}
			return utils.Fail(c, apiErr.StatusCode, apiErr.Message, details)
		}
		logger := middleware.RequestLogger(logger, c)
		logger.Error().Err(err).Msg("lms server error")
		return utils.SendError(c, fiber.StatusBadGateway, apiErr.Message)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return utils.SendError(c, fiber.StatusGatewayTimeout, "request timed out")
	}

	requestLogger := middleware.RequestLogger(logger, c)
	requestLogger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
