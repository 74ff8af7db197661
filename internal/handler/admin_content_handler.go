package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/service"
	"github.com/noah-isme/gema-lms-gateway/internal/utils"
)

// AdminContentHandler manages course content and file uploads.
type AdminContentHandler struct {
	service service.ContentService
	logger  zerolog.Logger
}

// NewAdminContentHandler constructs the handler.
func NewAdminContentHandler(service service.ContentService, logger zerolog.Logger) *AdminContentHandler {
	return &AdminContentHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_content_handler").Logger(),
	}
}

// Register attaches content routes to the router group.
func (h *AdminContentHandler) Register(router fiber.Router) {
	router.Get("/content", h.list)
	router.Post("/content/upload", h.upload)
	router.Get("/content/:id", h.get)
	router.Post("/content", h.create)
	router.Put("/content/:id", h.update)
	router.Delete("/content/:id", h.delete)
}

func (h *AdminContentHandler) list(c *fiber.Ctx) error {
	courseID := strings.TrimSpace(c.Query("courseId"))
	if courseID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "courseId is required")
	}

	items, err := h.service.List(c.UserContext(), courseID)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "content retrieved", items)
}

func (h *AdminContentHandler) get(c *fiber.Ctx) error {
	item, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "content retrieved", item)
}

func (h *AdminContentHandler) create(c *fiber.Ctx) error {
	var payload dto.ContentInput
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	item, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusCreated, "content created", item)
}

func (h *AdminContentHandler) update(c *fiber.Ctx) error {
	var payload dto.ContentInput
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	item, err := h.service.Update(c.UserContext(), c.Params("id"), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "content updated", item)
}

func (h *AdminContentHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "content deleted", nil)
}

func (h *AdminContentHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, fiber.ErrRequestEntityTooLarge) {
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, service.ErrUploadTooLarge.Error())
		}
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	kind := c.Query("type")
	if kind == "" {
		kind = c.FormValue("type")
	}

	uploaded, err := h.service.Upload(c.UserContext(), kind, file)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusCreated, "file uploaded", uploaded)
}
