package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

//go:embed schema/assessment.json
var assessmentSchemaDocument []byte

const assessmentSchemaURL = "https://gema-lms.local/schema/assessment.json"

// ErrInvalidAssessment wraps schema violations of an assessment payload.
var ErrInvalidAssessment = errors.New("invalid assessment")

var (
	assessmentSchemaOnce sync.Once
	assessmentSchema     *jsonschema.Schema
	assessmentSchemaErr  error
)

func compiledAssessmentSchema() (*jsonschema.Schema, error) {
	assessmentSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(assessmentSchemaURL, bytes.NewReader(assessmentSchemaDocument)); err != nil {
			assessmentSchemaErr = err
			return
		}
		assessmentSchema, assessmentSchemaErr = compiler.Compile(assessmentSchemaURL)
	})
	return assessmentSchema, assessmentSchemaErr
}

// ValidateAssessmentInput checks an assessment payload against the answer-key rules
// each question type needs to be scoreable.
func ValidateAssessmentInput(input dto.AssessmentInput) error {
	schema, err := compiledAssessmentSchema()
	if err != nil {
		return fmt.Errorf("compile assessment schema: %w", err)
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return err
	}
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return err
	}

	if err := schema.Validate(document); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			leaf := validationErr
			for len(leaf.Causes) > 0 {
				leaf = leaf.Causes[0]
			}
			return fmt.Errorf("%w: %s %s", ErrInvalidAssessment, leaf.InstanceLocation, leaf.Message)
		}
		return fmt.Errorf("%w: %v", ErrInvalidAssessment, err)
	}
	return nil
}

// LearnerView strips answer keys so an assessment can be shown to a learner.
func LearnerView(assessment models.Assessment) models.Assessment {
	view := assessment
	view.Questions = make([]models.Question, len(assessment.Questions))
	for i, question := range assessment.Questions {
		stripped := question
		stripped.CorrectAnswer = nil
		stripped.Explanation = ""
		if len(question.Options) > 0 {
			stripped.Options = make([]models.Option, len(question.Options))
			for j, option := range question.Options {
				stripped.Options[j] = models.Option{ID: option.ID, Text: option.Text}
			}
		}
		view.Questions[i] = stripped
	}
	return view
}

// AssessmentService manages assessments.
type AssessmentService interface {
	List(ctx context.Context, courseID string) ([]models.Assessment, error)
	Get(ctx context.Context, id string) (models.Assessment, error)
	Create(ctx context.Context, input dto.AssessmentInput) (models.Assessment, error)
	Update(ctx context.Context, id string, input dto.AssessmentInput) (models.Assessment, error)
	Delete(ctx context.Context, id string) error
}

type assessmentService struct {
	api       AssessmentAPI
	validator *validator.Validate
	notifier  Notifier
	logger    zerolog.Logger
}

// NewAssessmentService constructs the assessment service.
func NewAssessmentService(api AssessmentAPI, validate *validator.Validate, notifier Notifier, logger zerolog.Logger) AssessmentService {
	return &assessmentService{
		api:       api,
		validator: validate,
		notifier:  notifier,
		logger:    logger.With().Str("component", "assessment_service").Logger(),
	}
}

func (s *assessmentService) List(ctx context.Context, courseID string) ([]models.Assessment, error) {
	items, err := s.api.ListAssessments(ctx, courseID)
	if err != nil {
		return nil, notifyFailure(ctx, s.notifier, s.logger, "assessments.list", err)
	}
	return items, nil
}

func (s *assessmentService) Get(ctx context.Context, id string) (models.Assessment, error) {
	item, err := s.api.GetAssessment(ctx, id)
	if err != nil {
		return models.Assessment{}, notifyFailure(ctx, s.notifier, s.logger, "assessments.get", err)
	}
	return item, nil
}

func (s *assessmentService) Create(ctx context.Context, input dto.AssessmentInput) (models.Assessment, error) {
	if err := s.check(input); err != nil {
		return models.Assessment{}, err
	}
	item, err := s.api.CreateAssessment(ctx, input)
	if err != nil {
		return models.Assessment{}, notifyFailure(ctx, s.notifier, s.logger, "assessments.create", err)
	}
	notifySuccess(ctx, s.notifier, "assessments.create", "Assessment created successfully")
	return item, nil
}

func (s *assessmentService) Update(ctx context.Context, id string, input dto.AssessmentInput) (models.Assessment, error) {
	if err := s.check(input); err != nil {
		return models.Assessment{}, err
	}
	item, err := s.api.UpdateAssessment(ctx, id, input)
	if err != nil {
		return models.Assessment{}, notifyFailure(ctx, s.notifier, s.logger, "assessments.update", err)
	}
	notifySuccess(ctx, s.notifier, "assessments.update", "Assessment updated successfully")
	return item, nil
}

func (s *assessmentService) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteAssessment(ctx, id); err != nil {
		return notifyFailure(ctx, s.notifier, s.logger, "assessments.delete", err)
	}
	notifySuccess(ctx, s.notifier, "assessments.delete", "Assessment deleted successfully")
	return nil
}

func (s *assessmentService) check(input dto.AssessmentInput) error {
	if err := s.validator.Struct(input); err != nil {
		return err
	}
	return ValidateAssessmentInput(input)
}
