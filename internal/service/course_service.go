package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// CourseService manages the course catalog.
type CourseService interface {
	List(ctx context.Context, query dto.CourseQuery) ([]models.Course, error)
	Get(ctx context.Context, id string) (models.Course, error)
	Create(ctx context.Context, input dto.CourseInput) (models.Course, error)
	Update(ctx context.Context, id string, input dto.CourseInput) (models.Course, error)
	Delete(ctx context.Context, id string) error
}

type courseService struct {
	api       CourseAPI
	validator *validator.Validate
	notifier  Notifier
	logger    zerolog.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(api CourseAPI, validate *validator.Validate, notifier Notifier, logger zerolog.Logger) CourseService {
	return &courseService{
		api:       api,
		validator: validate,
		notifier:  notifier,
		logger:    logger.With().Str("component", "course_service").Logger(),
	}
}

func (s *courseService) List(ctx context.Context, query dto.CourseQuery) ([]models.Course, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}
	courses, err := s.api.ListCourses(ctx, query)
	if err != nil {
		return nil, notifyFailure(ctx, s.notifier, s.logger, "courses.list", err)
	}
	return courses, nil
}

func (s *courseService) Get(ctx context.Context, id string) (models.Course, error) {
	if strings.TrimSpace(id) == "" {
		return models.Course{}, fmt.Errorf("course id is required")
	}
	course, err := s.api.GetCourse(ctx, id)
	if err != nil {
		return models.Course{}, notifyFailure(ctx, s.notifier, s.logger, "courses.get", err)
	}
	return course, nil
}

func (s *courseService) Create(ctx context.Context, input dto.CourseInput) (models.Course, error) {
	if err := s.validator.Struct(input); err != nil {
		return models.Course{}, err
	}
	course, err := s.api.CreateCourse(ctx, input)
	if err != nil {
		return models.Course{}, notifyFailure(ctx, s.notifier, s.logger, "courses.create", err)
	}
	notifySuccess(ctx, s.notifier, "courses.create", "Course created successfully")
	return course, nil
}

func (s *courseService) Update(ctx context.Context, id string, input dto.CourseInput) (models.Course, error) {
	if err := s.validator.Struct(input); err != nil {
		return models.Course{}, err
	}
	course, err := s.api.UpdateCourse(ctx, id, input)
	if err != nil {
		return models.Course{}, notifyFailure(ctx, s.notifier, s.logger, "courses.update", err)
	}
	notifySuccess(ctx, s.notifier, "courses.update", "Course updated successfully")
	return course, nil
}

func (s *courseService) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteCourse(ctx, id); err != nil {
		return notifyFailure(ctx, s.notifier, s.logger, "courses.delete", err)
	}
	notifySuccess(ctx, s.notifier, "courses.delete", "Course deleted successfully")
	return nil
}
