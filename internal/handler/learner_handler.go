package handler

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/middleware"
	"github.com/noah-isme/gema-lms-gateway/internal/service"
	"github.com/noah-isme/gema-lms-gateway/internal/utils"
)

// LearnerHandler wires the catalog, dashboard, enrollment and certificate endpoints.
type LearnerHandler struct {
	learner      service.LearnerService
	courses      service.CourseService
	categories   service.CategoryService
	certificates service.CertificateService
	validator    *validator.Validate
	logger       zerolog.Logger
}

// NewLearnerHandler constructs the handler.
func NewLearnerHandler(learner service.LearnerService, courses service.CourseService, categories service.CategoryService, certificates service.CertificateService, validate *validator.Validate, logger zerolog.Logger) *LearnerHandler {
	return &LearnerHandler{
		learner:      learner,
		courses:      courses,
		categories:   categories,
		certificates: certificates,
		validator:    validate,
		logger:       logger.With().Str("component", "learner_handler").Logger(),
	}
}

// Register attaches learner routes to the router group.
func (h *LearnerHandler) Register(router fiber.Router) {
	signedIn := middleware.AuthOptions{RequireUser: true}

	router.Get("/courses", h.listCourses)
	router.Get("/courses/:id", h.courseDetail)
	router.Get("/categories", h.listCategories)

	router.Get("/dashboard", middleware.WithAuth(h.dashboard, signedIn))
	router.Post("/courses/:id/enroll", middleware.WithAuth(h.enroll, signedIn))
	router.Post("/courses/:id/content/:contentId/complete", middleware.WithAuth(h.completeContent, signedIn))
	router.Get("/enrollments/:id/assessment-status/:assessmentId", middleware.WithAuth(h.assessmentStatus, signedIn))
	router.Get("/certificates", middleware.WithAuth(h.listCertificates, signedIn))
	router.Get("/certificates/:id", middleware.WithAuth(h.certificate, signedIn))
	router.Get("/certificates/:id/download-pdf", middleware.WithAuth(h.certificatePDF, signedIn))
}

func (h *LearnerHandler) listCourses(c *fiber.Ctx) error {
	var query dto.CourseQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}
	query.Search = strings.TrimSpace(query.Search)
	if err := h.validator.Struct(query); err != nil {
		return handleError(c, h.logger, err)
	}

	courses, err := h.courses.List(c.UserContext(), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "courses retrieved", courses)
}

func (h *LearnerHandler) courseDetail(c *fiber.Ctx) error {
	detail, err := h.learner.CourseDetail(c.UserContext(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "course retrieved", detail)
}

func (h *LearnerHandler) listCategories(c *fiber.Ctx) error {
	categories, err := h.categories.List(c.UserContext())
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "categories retrieved", categories)
}

func (h *LearnerHandler) dashboard(c *fiber.Ctx) error {
	dashboard, err := h.learner.Dashboard(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "dashboard retrieved", dashboard)
}

func (h *LearnerHandler) enroll(c *fiber.Ctx) error {
	enrollment, err := h.learner.Enroll(c.UserContext(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusCreated, "enrolled", enrollment)
}

func (h *LearnerHandler) completeContent(c *fiber.Ctx) error {
	completion, err := h.learner.CompleteContent(c.UserContext(), userIDFromContext(c), c.Params("id"), c.Params("contentId"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	message := "content completed"
	if completion.AlreadyComplete {
		message = "content already completed"
	}
	return success(c, fiber.StatusOK, message, completion)
}

func (h *LearnerHandler) assessmentStatus(c *fiber.Ctx) error {
	status, err := h.learner.AssessmentStatus(c.UserContext(), userIDFromContext(c), c.Params("id"), c.Params("assessmentId"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "assessment status retrieved", status)
}

func (h *LearnerHandler) listCertificates(c *fiber.Ctx) error {
	certificates, err := h.certificates.ListMine(c.UserContext())
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "certificates retrieved", certificates)
}

func (h *LearnerHandler) certificate(c *fiber.Ctx) error {
	certificate, err := h.certificates.Download(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "certificate retrieved", certificate)
}

func (h *LearnerHandler) certificatePDF(c *fiber.Ctx) error {
	document, err := h.certificates.PDF(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	contentType := document.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	fileName := document.FileName
	if fileName == "" {
		fileName = fmt.Sprintf("certificate-%s.pdf", c.Params("id"))
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", fileName))
	return c.Status(fiber.StatusOK).Send(document.Body)
}
