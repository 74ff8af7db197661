package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/fetch"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
	"github.com/noah-isme/gema-lms-gateway/internal/progress"
)

// EnrollmentService reads a learner's enrollments and writes their progress.
// Reads for the same user are coordinated so only the newest result is cached; every
// caller still receives data read after its own call began.
type EnrollmentService interface {
	ListForUser(ctx context.Context, userID string) ([]models.Enrollment, error)
	Snapshot(userID string) fetch.Snapshot[[]models.Enrollment]
	FindByCourse(ctx context.Context, userID, courseID string) (models.Enrollment, bool, error)
	Enroll(ctx context.Context, userID, courseID string) (models.Enrollment, error)
	UpdateProgress(ctx context.Context, userID, enrollmentID string, update models.ProgressUpdate) (models.Enrollment, error)
	AssessmentStatus(ctx context.Context, enrollmentID, assessmentID string) (models.AssessmentStatus, error)
}

type enrollmentService struct {
	api      EnrollmentAPI
	loader   *fetch.Loader[[]models.Enrollment]
	notifier Notifier
	logger   zerolog.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(api EnrollmentAPI, notifier Notifier, logger zerolog.Logger) EnrollmentService {
	return &enrollmentService{
		api:      api,
		loader:   fetch.NewLoader[[]models.Enrollment]("enrollments", logger),
		notifier: notifier,
		logger:   logger.With().Str("component", "enrollment_service").Logger(),
	}
}

func (s *enrollmentService) ListForUser(ctx context.Context, userID string) ([]models.Enrollment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}

	snapshot, err := s.loader.Load(ctx, userID, func(ctx context.Context) ([]models.Enrollment, error) {
		return s.api.ListEnrollments(ctx, userID)
	})
	switch {
	case err == nil:
		return snapshot.Data, nil
	case errors.Is(err, fetch.ErrSuperseded):
		// The newer load belongs to another request; this caller still needs data
		// read after it started, not the cached snapshot.
		enrollments, directErr := s.api.ListEnrollments(ctx, userID)
		if directErr != nil {
			return nil, notifyFailure(ctx, s.notifier, s.logger, "enrollments.list", directErr)
		}
		return enrollments, nil
	default:
		return nil, notifyFailure(ctx, s.notifier, s.logger, "enrollments.list", err)
	}
}

func (s *enrollmentService) Snapshot(userID string) fetch.Snapshot[[]models.Enrollment] {
	return s.loader.Get(userID)
}

func (s *enrollmentService) FindByCourse(ctx context.Context, userID, courseID string) (models.Enrollment, bool, error) {
	enrollments, err := s.ListForUser(ctx, userID)
	if err != nil {
		return models.Enrollment{}, false, err
	}
	enrollment, ok := progress.FindEnrollment(enrollments, courseID)
	return enrollment, ok, nil
}

func (s *enrollmentService) Enroll(ctx context.Context, userID, courseID string) (models.Enrollment, error) {
	enrollment, err := s.api.Enroll(ctx, courseID)
	if err != nil {
		return models.Enrollment{}, notifyFailure(ctx, s.notifier, s.logger, "enrollments.create", err)
	}
	if enrollment.Course.IsZero() {
		enrollment.Course = models.NewRef(courseID)
	}
	s.publish(userID, enrollment)
	notifySuccess(ctx, s.notifier, "enrollments.create", "Successfully enrolled in course")
	return enrollment, nil
}

func (s *enrollmentService) UpdateProgress(ctx context.Context, userID, enrollmentID string, update models.ProgressUpdate) (models.Enrollment, error) {
	enrollment, err := s.api.UpdateProgress(ctx, enrollmentID, update)
	if err != nil {
		return models.Enrollment{}, notifyFailure(ctx, s.notifier, s.logger, "enrollments.progress", err)
	}
	if enrollment.ID == "" {
		enrollment.ID = enrollmentID
	}
	s.publish(userID, enrollment)
	return enrollment, nil
}

func (s *enrollmentService) AssessmentStatus(ctx context.Context, enrollmentID, assessmentID string) (models.AssessmentStatus, error) {
	status, err := s.api.AssessmentStatus(ctx, enrollmentID, assessmentID)
	if err != nil {
		return models.AssessmentStatus{}, notifyFailure(ctx, s.notifier, s.logger, "enrollments.assessment_status", err)
	}
	return status, nil
}

// publish folds a confirmed enrollment into the user's cached list.
func (s *enrollmentService) publish(userID string, enrollment models.Enrollment) {
	if userID == "" {
		return
	}
	current := s.loader.Get(userID)
	if !current.HasData {
		return
	}
	next := make([]models.Enrollment, 0, len(current.Data)+1)
	replaced := false
	for _, existing := range current.Data {
		if existing.ID == enrollment.ID {
			next = append(next, enrollment)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, enrollment)
	}
	s.loader.Set(userID, next)
}
