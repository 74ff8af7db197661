package service

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// CategoryService manages course categories.
type CategoryService interface {
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, input dto.CategoryInput) (models.Category, error)
	Update(ctx context.Context, id string, input dto.CategoryInput) (models.Category, error)
	Delete(ctx context.Context, id string) error
}

type categoryService struct {
	api       CategoryAPI
	validator *validator.Validate
	notifier  Notifier
	logger    zerolog.Logger
}

// NewCategoryService constructs the category service.
func NewCategoryService(api CategoryAPI, validate *validator.Validate, notifier Notifier, logger zerolog.Logger) CategoryService {
	return &categoryService{
		api:       api,
		validator: validate,
		notifier:  notifier,
		logger:    logger.With().Str("component", "category_service").Logger(),
	}
}

func (s *categoryService) List(ctx context.Context) ([]models.Category, error) {
	categories, err := s.api.ListCategories(ctx)
	if err != nil {
		return nil, notifyFailure(ctx, s.notifier, s.logger, "categories.list", err)
	}
	sort.SliceStable(categories, func(i, j int) bool {
		return strings.ToLower(categories[i].Name) < strings.ToLower(categories[j].Name)
	})
	return categories, nil
}

func (s *categoryService) Create(ctx context.Context, input dto.CategoryInput) (models.Category, error) {
	if err := s.validator.Struct(input); err != nil {
		return models.Category{}, err
	}
	category, err := s.api.CreateCategory(ctx, input)
	if err != nil {
		return models.Category{}, notifyFailure(ctx, s.notifier, s.logger, "categories.create", err)
	}
	notifySuccess(ctx, s.notifier, "categories.create", "Category created successfully")
	return category, nil
}

func (s *categoryService) Update(ctx context.Context, id string, input dto.CategoryInput) (models.Category, error) {
	if err := s.validator.Struct(input); err != nil {
		return models.Category{}, err
	}
	category, err := s.api.UpdateCategory(ctx, id, input)
	if err != nil {
		return models.Category{}, notifyFailure(ctx, s.notifier, s.logger, "categories.update", err)
	}
	notifySuccess(ctx, s.notifier, "categories.update", "Category updated successfully")
	return category, nil
}

func (s *categoryService) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteCategory(ctx, id); err != nil {
		return notifyFailure(ctx, s.notifier, s.logger, "categories.delete", err)
	}
	notifySuccess(ctx, s.notifier, "categories.delete", "Category deleted successfully")
	return nil
}
