package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/service"
	"github.com/noah-isme/gema-lms-gateway/internal/utils"
)

// AdminCourseHandler manages courses and categories.
type AdminCourseHandler struct {
	courses    service.CourseService
	categories service.CategoryService
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewAdminCourseHandler constructs the handler.
func NewAdminCourseHandler(courses service.CourseService, categories service.CategoryService, validate *validator.Validate, logger zerolog.Logger) *AdminCourseHandler {
	return &AdminCourseHandler{
		courses:    courses,
		categories: categories,
		validator:  validate,
		logger:     logger.With().Str("component", "admin_course_handler").Logger(),
	}
}

// Register attaches course and category routes to the router group.
func (h *AdminCourseHandler) Register(router fiber.Router) {
	router.Get("/courses", h.listCourses)
	router.Get("/courses/:id", h.getCourse)
	router.Post("/courses", h.createCourse)
	router.Put("/courses/:id", h.updateCourse)
	router.Delete("/courses/:id", h.deleteCourse)

	router.Get("/categories", h.listCategories)
	router.Post("/categories", h.createCategory)
	router.Put("/categories/:id", h.updateCategory)
	router.Delete("/categories/:id", h.deleteCategory)
}

func (h *AdminCourseHandler) listCourses(c *fiber.Ctx) error {
	var query dto.CourseQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}
	if err := h.validator.Struct(query); err != nil {
		return handleError(c, h.logger, err)
	}

	courses, err := h.courses.List(c.UserContext(), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "courses retrieved", courses)
}

func (h *AdminCourseHandler) getCourse(c *fiber.Ctx) error {
	course, err := h.courses.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "course retrieved", course)
}

func (h *AdminCourseHandler) createCourse(c *fiber.Ctx) error {
	var payload dto.CourseInput
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.courses.Create(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusCreated, "course created", course)
}

func (h *AdminCourseHandler) updateCourse(c *fiber.Ctx) error {
	var payload dto.CourseInput
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.courses.Update(c.UserContext(), c.Params("id"), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "course updated", course)
}

func (h *AdminCourseHandler) deleteCourse(c *fiber.Ctx) error {
	if err := h.courses.Delete(c.UserContext(), c.Params("id")); err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "course deleted", nil)
}

func (h *AdminCourseHandler) listCategories(c *fiber.Ctx) error {
	categories, err := h.categories.List(c.UserContext())
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "categories retrieved", categories)
}

func (h *AdminCourseHandler) createCategory(c *fiber.Ctx) error {
	var payload dto.CategoryInput
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	category, err := h.categories.Create(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusCreated, "category created", category)
}

func (h *AdminCourseHandler) updateCategory(c *fiber.Ctx) error {
	var payload dto.CategoryInput
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	category, err := h.categories.Update(c.UserContext(), c.Params("id"), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "category updated", category)
}

func (h *AdminCourseHandler) deleteCategory(c *fiber.Ctx) error {
	if err := h.categories.Delete(c.UserContext(), c.Params("id")); err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "category deleted", nil)
}
