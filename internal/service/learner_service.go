package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-lms-gateway/internal/models"
	"github.com/noah-isme/gema-lms-gateway/internal/progress"
)

var (
	// ErrNotEnrolled is returned when the learner has no enrollment for the course.
	ErrNotEnrolled = errors.New("you are not enrolled in this course")
	// ErrAlreadyEnrolled is returned when enrolling twice.
	ErrAlreadyEnrolled = errors.New("you are already enrolled in this course")
	// ErrContentNotInCourse is returned when a content item does not belong to the course.
	ErrContentNotInCourse = errors.New("content item does not belong to this course")
)

// DashboardEntry is one enrolled course on the learner dashboard.
type DashboardEntry struct {
	Enrollment models.Enrollment `json:"enrollment"`
	Course     *models.Course    `json:"course,omitempty"`
	Progress   progress.Snapshot `json:"progress"`
	Derived    bool              `json:"derived"`
}

// DashboardSummary aggregates the learner's enrollments.
type DashboardSummary struct {
	Enrolled        int `json:"enrolled"`
	Completed       int `json:"completed"`
	InProgress      int `json:"in_progress"`
	AverageProgress int `json:"average_progress"`
}

// Dashboard is the learner landing page.
type Dashboard struct {
	Summary     DashboardSummary `json:"summary"`
	Enrollments []DashboardEntry `json:"enrollments"`
}

// ContentView is a content item annotated with completion.
type ContentView struct {
	Item      models.ContentItem `json:"item"`
	Completed bool               `json:"completed"`
}

// AssessmentView is an assessment annotated with the learner's standing.
type AssessmentView struct {
	Assessment   models.Assessment           `json:"assessment"`
	Unlocked     bool                        `json:"unlocked"`
	Eligibility  progress.Eligibility        `json:"eligibility"`
	PassingScore int                         `json:"passing_score"`
	History      *models.CompletedAssessment `json:"history,omitempty"`
}

// CourseDetail is the course page, including the learning view when enrolled.
type CourseDetail struct {
	Course      models.Course      `json:"course"`
	Enrolled    bool               `json:"enrolled"`
	Enrollment  *models.Enrollment `json:"enrollment,omitempty"`
	Progress    *progress.Snapshot `json:"progress,omitempty"`
	Content     []ContentView      `json:"content"`
	Assessments []AssessmentView   `json:"assessments"`
}

// ContentCompletion reports the outcome of marking content complete.
type ContentCompletion struct {
	Enrollment      models.Enrollment        `json:"enrollment"`
	Progress        progress.Snapshot        `json:"progress"`
	AlreadyComplete bool                     `json:"already_complete"`
	Reconciliation  *progress.Reconciliation `json:"reconciliation,omitempty"`
}

// AssessmentStatusView combines the local eligibility rule with the server's status.
type AssessmentStatusView struct {
	Local    progress.Eligibility    `json:"local"`
	Unlocked bool                    `json:"unlocked"`
	Server   models.AssessmentStatus `json:"server"`
}

// LearnerService composes learner-facing pages from the per-resource services.
type LearnerService interface {
	Dashboard(ctx context.Context, userID string) (Dashboard, error)
	CourseDetail(ctx context.Context, userID, courseID string) (CourseDetail, error)
	Enroll(ctx context.Context, userID, courseID string) (models.Enrollment, error)
	CompleteContent(ctx context.Context, userID, courseID, contentID string) (ContentCompletion, error)
	AssessmentStatus(ctx context.Context, userID, enrollmentID, assessmentID string) (AssessmentStatusView, error)
}

type learnerService struct {
	courses     CourseService
	content     ContentService
	assessments AssessmentService
	enrollments EnrollmentService
	notifier    Notifier
	logger      zerolog.Logger
	now         func() time.Time
}

// NewLearnerService constructs the learner page service.
func NewLearnerService(courses CourseService, content ContentService, assessments AssessmentService, enrollments EnrollmentService, notifier Notifier, logger zerolog.Logger) LearnerService {
	return &learnerService{
		courses:     courses,
		content:     content,
		assessments: assessments,
		enrollments: enrollments,
		notifier:    notifier,
		logger:      logger.With().Str("component", "learner_service").Logger(),
		now:         time.Now,
	}
}

func (s *learnerService) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	enrollments, err := s.enrollments.ListForUser(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}

	entries := make([]DashboardEntry, len(enrollments))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for i := range enrollments {
		i := i
		group.Go(func() error {
			entries[i] = s.dashboardEntry(groupCtx, enrollments[i])
			return nil
		})
	}
	_ = group.Wait()

	dashboard := Dashboard{Enrollments: entries}
	total := 0
	for _, entry := range entries {
		dashboard.Summary.Enrolled++
		total += entry.Progress.OverallProgress
		if entry.Progress.OverallProgress >= 100 || entry.Enrollment.Status == models.EnrollmentStatusCompleted {
			dashboard.Summary.Completed++
		} else {
			dashboard.Summary.InProgress++
		}
	}
	if dashboard.Summary.Enrolled > 0 {
		dashboard.Summary.AverageProgress = total / dashboard.Summary.Enrolled
	}
	return dashboard, nil
}

// dashboardEntry derives progress from course totals, falling back to the stored
// overall value when totals cannot be read.
func (s *learnerService) dashboardEntry(ctx context.Context, enrollment models.Enrollment) DashboardEntry {
	entry := DashboardEntry{
		Enrollment: enrollment,
		Progress:   progress.Snapshot{OverallProgress: enrollment.Progress.OverallProgress},
	}

	if enrollment.Course.Populated() {
		var course models.Course
		if err := enrollment.Course.Decode(&course); err == nil {
			entry.Course = &course
		}
	}

	totals, err := s.totals(ctx, enrollment.Course.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("course_id", enrollment.Course.ID).Msg("using stored progress; course totals unavailable")
		return entry
	}
	entry.Progress = progress.Derive(enrollment.Progress, totals)
	entry.Derived = true
	return entry
}

func (s *learnerService) totals(ctx context.Context, courseID string) (progress.Totals, error) {
	var content []models.ContentItem
	var assessments []models.Assessment

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		content, err = s.content.List(groupCtx, courseID)
		return err
	})
	group.Go(func() error {
		var err error
		assessments, err = s.assessments.List(groupCtx, courseID)
		return err
	})
	if err := group.Wait(); err != nil {
		return progress.Totals{}, err
	}
	return totalsFor(content, assessments), nil
}

func totalsFor(content []models.ContentItem, assessments []models.Assessment) progress.Totals {
	ids := make([]string, 0, len(assessments))
	for _, assessment := range assessments {
		ids = append(ids, assessment.ID)
	}
	return progress.Totals{ContentItems: len(content), Assessments: len(assessments), AssessmentIDs: ids}
}

func (s *learnerService) CourseDetail(ctx context.Context, userID, courseID string) (CourseDetail, error) {
	var (
		course      models.Course
		content     []models.ContentItem
		assessments []models.Assessment
		enrollment  models.Enrollment
		enrolled    bool
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		course, err = s.courses.Get(groupCtx, courseID)
		return err
	})
	group.Go(func() error {
		var err error
		content, err = s.content.List(groupCtx, courseID)
		return err
	})
	group.Go(func() error {
		var err error
		assessments, err = s.assessments.List(groupCtx, courseID)
		return err
	})
	if userID != "" {
		group.Go(func() error {
			var err error
			enrollment, enrolled, err = s.enrollments.FindByCourse(groupCtx, userID, courseID)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return CourseDetail{}, err
	}

	detail := CourseDetail{
		Course:      course,
		Enrolled:    enrolled,
		Content:     make([]ContentView, 0, len(content)),
		Assessments: make([]AssessmentView, 0, len(assessments)),
	}

	var snapshot progress.Snapshot
	if enrolled {
		snapshot = progress.Derive(enrollment.Progress, totalsFor(content, assessments))
		detail.Enrollment = &enrollment
		detail.Progress = &snapshot
	}

	for _, item := range content {
		detail.Content = append(detail.Content, ContentView{
			Item:      item,
			Completed: enrolled && enrollment.Progress.HasCompletedContent(item.ID),
		})
	}

	for _, assessment := range assessments {
		view := AssessmentView{
			Assessment:   LearnerView(assessment),
			Unlocked:     snapshot.AssessmentUnlocked,
			PassingScore: progress.PassingScoreFor(assessment),
		}
		var history *models.CompletedAssessment
		if enrolled {
			history = enrollment.Progress.FindAssessment(assessment.ID)
		}
		view.History = history
		view.Eligibility = progress.CheckAssessmentEligibility(history, assessment.EffectiveMaxAttempts())
		if !enrolled {
			view.Eligibility.CanTake = false
		}
		detail.Assessments = append(detail.Assessments, view)
	}

	return detail, nil
}

func (s *learnerService) Enroll(ctx context.Context, userID, courseID string) (models.Enrollment, error) {
	if _, enrolled, err := s.enrollments.FindByCourse(ctx, userID, courseID); err != nil {
		return models.Enrollment{}, err
	} else if enrolled {
		return models.Enrollment{}, ErrAlreadyEnrolled
	}
	return s.enrollments.Enroll(ctx, userID, courseID)
}

// CompleteContent records completion optimistically: the provisional progress is
// computed locally and sent upstream; if the write fails nothing is kept.
func (s *learnerService) CompleteContent(ctx context.Context, userID, courseID, contentID string) (ContentCompletion, error) {
	enrollment, enrolled, err := s.enrollments.FindByCourse(ctx, userID, courseID)
	if err != nil {
		return ContentCompletion{}, err
	}
	if !enrolled {
		return ContentCompletion{}, ErrNotEnrolled
	}

	content, err := s.content.List(ctx, courseID)
	if err != nil {
		return ContentCompletion{}, err
	}
	if !containsContent(content, contentID) {
		return ContentCompletion{}, ErrContentNotInCourse
	}
	assessments, err := s.assessments.List(ctx, courseID)
	if err != nil {
		return ContentCompletion{}, err
	}
	totals := totalsFor(content, assessments)

	if enrollment.Progress.HasCompletedContent(contentID) {
		return ContentCompletion{
			Enrollment:      enrollment,
			Progress:        progress.Derive(enrollment.Progress, totals),
			AlreadyComplete: true,
		}, nil
	}

	provisional := progress.Recompute(progress.MarkContentComplete(enrollment.Progress, contentID, s.now().UTC()), totals)
	confirmed, err := s.enrollments.UpdateProgress(ctx, userID, enrollment.ID, progressUpdate(provisional))
	if err != nil {
		s.logger.Warn().Err(err).Str("enrollment_id", enrollment.ID).Str("content_id", contentID).Msg("reverting provisional completion")
		return ContentCompletion{}, fmt.Errorf("mark content complete: %w", err)
	}

	reconciliation := progress.Reconcile(provisional, confirmed.Progress, "")
	if !reconciliation.Confirmed {
		s.logger.Info().Str("enrollment_id", enrollment.ID).Interface("mismatches", reconciliation.Mismatches).Msg("server progress differs from provisional write")
	}

	notifySuccess(ctx, s.notifier, "content.complete", "Content marked as complete")
	return ContentCompletion{
		Enrollment:     confirmed,
		Progress:       progress.Derive(confirmed.Progress, totals),
		Reconciliation: &reconciliation,
	}, nil
}

func (s *learnerService) AssessmentStatus(ctx context.Context, userID, enrollmentID, assessmentID string) (AssessmentStatusView, error) {
	enrollments, err := s.enrollments.ListForUser(ctx, userID)
	if err != nil {
		return AssessmentStatusView{}, err
	}
	var enrollment *models.Enrollment
	for i := range enrollments {
		if enrollments[i].ID == enrollmentID {
			enrollment = &enrollments[i]
			break
		}
	}
	if enrollment == nil {
		return AssessmentStatusView{}, ErrNotEnrolled
	}

	assessment, err := s.assessments.Get(ctx, assessmentID)
	if err != nil {
		return AssessmentStatusView{}, err
	}
	content, err := s.content.List(ctx, enrollment.Course.ID)
	if err != nil {
		return AssessmentStatusView{}, err
	}

	view := AssessmentStatusView{
		Local:    progress.CheckAssessmentEligibility(enrollment.Progress.FindAssessment(assessmentID), assessment.EffectiveMaxAttempts()),
		Unlocked: progress.IsAssessmentUnlocked(progress.ComputeContentProgress(len(content), enrollment.Progress.CompletedContentIDs())),
	}

	server, err := s.enrollments.AssessmentStatus(ctx, enrollmentID, assessmentID)
	if err != nil {
		return AssessmentStatusView{}, err
	}
	view.Server = server
	return view, nil
}

func containsContent(items []models.ContentItem, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func progressUpdate(p models.EnrollmentProgress) models.ProgressUpdate {
	return models.ProgressUpdate{
		CompletedContent:     p.CompletedContent,
		CompletedAssessments: p.CompletedAssessments,
		OverallProgress:      p.OverallProgress,
		LastActivity:         p.LastActivity,
	}
}
