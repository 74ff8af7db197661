package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// UserService manages accounts on behalf of administrators.
type UserService interface {
	List(ctx context.Context, role string) ([]models.User, error)
	Get(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, id string, input dto.UserUpdateRequest) (models.User, error)
	Delete(ctx context.Context, id string) error
}

type userService struct {
	api       UserAPI
	validator *validator.Validate
	notifier  Notifier
	logger    zerolog.Logger
}

// NewUserService constructs the user service.
func NewUserService(api UserAPI, validate *validator.Validate, notifier Notifier, logger zerolog.Logger) UserService {
	return &userService{
		api:       api,
		validator: validate,
		notifier:  notifier,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) List(ctx context.Context, role string) ([]models.User, error) {
	users, err := s.api.ListUsers(ctx, role)
	if err != nil {
		return nil, notifyFailure(ctx, s.notifier, s.logger, "users.list", err)
	}
	return users, nil
}

func (s *userService) Get(ctx context.Context, id string) (models.User, error) {
	user, err := s.api.GetUser(ctx, id)
	if err != nil {
		return models.User{}, notifyFailure(ctx, s.notifier, s.logger, "users.get", err)
	}
	return user, nil
}

func (s *userService) Update(ctx context.Context, id string, input dto.UserUpdateRequest) (models.User, error) {
	if err := s.validator.Struct(input); err != nil {
		return models.User{}, err
	}
	user, err := s.api.UpdateUser(ctx, id, input)
	if err != nil {
		return models.User{}, notifyFailure(ctx, s.notifier, s.logger, "users.update", err)
	}
	notifySuccess(ctx, s.notifier, "users.update", "User updated successfully")
	return user, nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteUser(ctx, id); err != nil {
		return notifyFailure(ctx, s.notifier, s.logger, "users.delete", err)
	}
	notifySuccess(ctx, s.notifier, "users.delete", "User deleted successfully")
	return nil
}
