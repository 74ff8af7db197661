package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-lms-gateway/internal/config"
	"github.com/noah-isme/gema-lms-gateway/internal/handler"
	"github.com/noah-isme/gema-lms-gateway/internal/middleware"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
	"github.com/noah-isme/gema-lms-gateway/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Sessions               middleware.SessionRestorer
	AuthHandler            *handler.AuthHandler
	LearnerHandler         *handler.LearnerHandler
	AttemptHandler         *handler.AttemptHandler
	AdminDashboardHandler  *handler.AdminDashboardHandler
	AdminCourseHandler     *handler.AdminCourseHandler
	AdminContentHandler    *handler.AdminContentHandler
	AdminAssessmentHandler *handler.AdminAssessmentHandler
	AdminUserHandler       *handler.AdminUserHandler
	HealthChecks           []handler.DependencyCheck
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks...))

	// Anonymous requests pass through; routes that need a user guard themselves.
	if deps.Sessions != nil {
		api.Use(middleware.Authenticate(deps.Sessions))
	}

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth"))
	}
	if deps.LearnerHandler != nil {
		deps.LearnerHandler.Register(api)
	}
	if deps.AttemptHandler != nil {
		deps.AttemptHandler.Register(api)
	}

	admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin, models.RoleInstructor))
	if deps.AdminDashboardHandler != nil {
		deps.AdminDashboardHandler.Register(admin)
	}
	if deps.AdminCourseHandler != nil {
		deps.AdminCourseHandler.Register(admin)
	}
	if deps.AdminContentHandler != nil {
		deps.AdminContentHandler.Register(admin)
	}
	if deps.AdminAssessmentHandler != nil {
		deps.AdminAssessmentHandler.Register(admin)
	}
	if deps.AdminUserHandler != nil {
		deps.AdminUserHandler.Register(admin)
	}
}
