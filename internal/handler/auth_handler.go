package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/middleware"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
	"github.com/noah-isme/gema-lms-gateway/internal/session"
	"github.com/noah-isme/gema-lms-gateway/internal/utils"
)

// SessionManager performs the session transitions exposed over HTTP.
type SessionManager interface {
	Login(ctx context.Context, req dto.LoginRequest) (session.Session, error)
	Register(ctx context.Context, req dto.RegisterRequest) (session.Session, error)
	Refresh(ctx context.Context, token string) (session.Session, error)
	Logout(ctx context.Context, token string) error
}

// ProfileAPI edits the signed-in user's account.
type ProfileAPI interface {
	UpdateProfile(ctx context.Context, req dto.ProfileUpdateRequest) (models.User, error)
	ChangePassword(ctx context.Context, req dto.PasswordChangeRequest) error
}

// AuthHandler exposes login, registration and profile endpoints.
type AuthHandler struct {
	sessions  SessionManager
	profile   ProfileAPI
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(sessions SessionManager, profile ProfileAPI, validate *validator.Validate, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:  sessions,
		profile:   profile,
		validator: validate,
		logger:    logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register attaches auth routes to the router group.
func (h *AuthHandler) Register(router fiber.Router) {
	router.Post("/login", middleware.RateLimit("auth_login", 10, time.Minute), h.login)
	router.Post("/register", middleware.RateLimit("auth_register", 5, time.Minute), h.register)
	router.Post("/logout", middleware.WithAuth(h.logout, middleware.AuthOptions{RequireUser: true}))
	router.Get("/me", middleware.WithAuth(h.me, middleware.AuthOptions{RequireUser: true}))
	router.Put("/profile", middleware.WithAuth(h.updateProfile, middleware.AuthOptions{RequireUser: true}))
	router.Put("/password", middleware.WithAuth(h.changePassword, middleware.AuthOptions{RequireUser: true}))
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	current, err := h.sessions.Login(c.UserContext(), payload)
	if err != nil {
		return h.credentialError(c, err)
	}
	return success(c, fiber.StatusOK, "signed in", sessionResponse(current))
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	current, err := h.sessions.Register(c.UserContext(), payload)
	if err != nil {
		return h.credentialError(c, err)
	}
	return success(c, fiber.StatusCreated, "account created", sessionResponse(current))
}

func (h *AuthHandler) logout(c *fiber.Ctx) error {
	if err := h.sessions.Logout(c.UserContext(), tokenFromContext(c)); err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "signed out", nil)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	current, ok := middleware.SessionFrom(c)
	if !ok {
		return utils.SendErrorWithData(c, fiber.StatusUnauthorized, "authentication required", middleware.LoginRedirect)
	}
	return success(c, fiber.StatusOK, "session restored", sessionResponse(current))
}

func (h *AuthHandler) updateProfile(c *fiber.Ctx) error {
	var payload dto.ProfileUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	if _, err := h.profile.UpdateProfile(c.UserContext(), payload); err != nil {
		return handleError(c, h.logger, err)
	}

	current, err := h.sessions.Refresh(c.UserContext(), tokenFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return success(c, fiber.StatusOK, "profile updated", sessionResponse(current))
}

func (h *AuthHandler) changePassword(c *fiber.Ctx) error {
	var payload dto.PasswordChangeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	if err := h.profile.ChangePassword(c.UserContext(), payload); err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "password changed", nil)
}

// credentialError surfaces the server's wording for rejected credentials instead of
// treating the 401 as an expired session.
func (h *AuthHandler) credentialError(c *fiber.Ctx, err error) error {
	if apiErr, ok := lmsclient.AsAPIError(err); ok && apiErr.StatusCode == fiber.StatusUnauthorized {
		return utils.SendError(c, fiber.StatusUnauthorized, apiErr.Message)
	}
	return handleError(c, h.logger, err)
}

func sessionResponse(current session.Session) dto.SessionResponse {
	response := dto.SessionResponse{
		Token: current.Token,
		User:  current.User,
		Roles: dto.RoleFlags{
			Admin:      current.IsAdmin(),
			Instructor: current.IsInstructor(),
			Student:    current.IsStudent(),
		},
	}
	if current.ExpiresAt != nil {
		response.ExpiresAt = current.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return response
}
