package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
	"github.com/noah-isme/gema-lms-gateway/internal/observability"
	"github.com/noah-isme/gema-lms-gateway/internal/progress"
	"github.com/noah-isme/gema-lms-gateway/internal/repository"
)

var (
	// ErrAttemptClosed is returned when an attempt was already submitted or abandoned.
	ErrAttemptClosed = errors.New("attempt is no longer in progress")
	// ErrAttemptExpired is returned when answers arrive after the deadline.
	ErrAttemptExpired = errors.New("time limit for this attempt has passed")
	// ErrUnknownQuestion is returned for answers keyed by a question the assessment lacks.
	ErrUnknownQuestion = errors.New("answer refers to an unknown question")
)

const (
	triggerManual = "manual"
	triggerTimer  = "timer"
)

// AttemptView is an attempt as shown to the learner while answering.
type AttemptView struct {
	Session          models.AttemptSession `json:"session"`
	Assessment       models.Assessment     `json:"assessment"`
	RemainingSeconds int                   `json:"remaining_seconds"`
}

// AttemptResult is the outcome of a submitted attempt.
type AttemptResult struct {
	Session        models.AttemptSession      `json:"session"`
	Score          progress.ScoreResult       `json:"score"`
	Summary        models.CompletedAssessment `json:"summary"`
	Enrollment     models.Enrollment          `json:"enrollment"`
	Reconciliation progress.Reconciliation    `json:"reconciliation"`
	Certificate    *models.Certificate        `json:"certificate,omitempty"`
}

// AttemptService runs timed assessment attempts.
type AttemptService interface {
	Start(ctx context.Context, userID, assessmentID string) (AttemptView, error)
	Get(ctx context.Context, userID, attemptID string) (AttemptView, error)
	SaveAnswers(ctx context.Context, userID, attemptID string, answers map[string]interface{}) (AttemptView, error)
	Submit(ctx context.Context, userID, attemptID string) (AttemptResult, error)
	Abandon(ctx context.Context, userID, attemptID string) error
	Resume(ctx context.Context) (ResumeReport, error)
	Shutdown()
}

// ResumeReport summarises the boot-time recovery of open attempts.
type ResumeReport struct {
	Rearmed       int `json:"rearmed"`
	AutoSubmitted int `json:"auto_submitted"`
	Failed        int `json:"failed"`
}

type stopper interface {
	Stop() bool
}

// armedTimer is the registry entry for one countdown. timer is set under
// attemptService.mu right after the entry is stored.
type armedTimer struct {
	timer stopper
}

func (a *armedTimer) Stop() bool {
	if a.timer == nil {
		return false
	}
	return a.timer.Stop()
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

type attemptService struct {
	repo         repository.AttemptSessionRepository
	assessments  AssessmentService
	content      ContentService
	enrollments  EnrollmentService
	certificates CertificateService
	notifier     Notifier
	logger       zerolog.Logger
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
	now          func() time.Time
	after        func(time.Duration, func()) stopper

	mu     sync.Mutex
	timers map[string]stopper
	locks  map[string]*keyLock
}

// NewAttemptService constructs the attempt runner.
func NewAttemptService(repo repository.AttemptSessionRepository, assessments AssessmentService, content ContentService, enrollments EnrollmentService, certificates CertificateService, notifier Notifier, logger zerolog.Logger) AttemptService {
	return &attemptService{
		repo:         repo,
		assessments:  assessments,
		content:      content,
		enrollments:  enrollments,
		certificates: certificates,
		notifier:     notifier,
		logger:       logger.With().Str("component", "attempt_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-lms-gateway/internal/service/attempt"),
		sanitizer:    bluemonday.StrictPolicy(),
		now:          time.Now,
		after: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		timers: make(map[string]stopper),
		locks:  make(map[string]*keyLock),
	}
}

func (s *attemptService) Start(ctx context.Context, userID, assessmentID string) (AttemptView, error) {
	ctx, span := s.tracer.Start(ctx, "attempt.start", trace.WithAttributes(attribute.String("assessment.id", assessmentID)))
	defer span.End()

	assessment, err := s.assessments.Get(ctx, assessmentID)
	if err != nil {
		return AttemptView{}, err
	}

	unlock := s.lock("start:" + userID + ":" + assessmentID)
	defer unlock()

	if existing, err := s.repo.FindOpen(ctx, userID, assessmentID); err == nil {
		if !existing.Expired(s.now()) {
			return s.view(existing, assessment), nil
		}
		if _, err := s.finalize(ctx, existing.ID, triggerTimer); err != nil && !errors.Is(err, ErrAttemptClosed) {
			s.logger.Warn().Err(err).Str("attempt_id", existing.ID).Msg("failed to close expired attempt before starting a new one")
		}
	} else if !errors.Is(err, repository.ErrAttemptNotFound) {
		return AttemptView{}, err
	}

	if len(assessment.Questions) == 0 {
		s.reject("no_questions")
		return AttemptView{}, fmt.Errorf("%w: %s", progress.ErrNoQuestions, assessment.ID)
	}

	courseID := assessment.Course.ID
	enrollment, enrolled, err := s.enrollments.FindByCourse(ctx, userID, courseID)
	if err != nil {
		return AttemptView{}, err
	}
	if !enrolled {
		s.reject("not_enrolled")
		return AttemptView{}, ErrNotEnrolled
	}

	content, err := s.content.List(ctx, courseID)
	if err != nil {
		return AttemptView{}, err
	}
	eligibility, err := progress.EnsureCanAttempt(enrollment, assessment, len(content))
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrAssessmentLocked):
			s.reject("locked")
		case errors.Is(err, progress.ErrMaxAttemptsReached):
			s.reject("max_attempts")
		}
		span.SetStatus(codes.Error, err.Error())
		return AttemptView{}, err
	}

	started := s.now().UTC()
	session := models.AttemptSession{
		ID:            uuid.NewString(),
		UserID:        userID,
		AssessmentID:  assessment.ID,
		CourseID:      courseID,
		EnrollmentID:  enrollment.ID,
		AttemptNumber: eligibility.CurrentAttempts + 1,
		Token:         lmsclient.TokenFromContext(ctx),
		Answers:       datatypes.JSONMap{},
		Status:        models.AttemptStatusInProgress,
		StartedAt:     started,
	}
	if assessment.TimeLimit > 0 {
		deadline := started.Add(time.Duration(assessment.TimeLimit) * time.Minute)
		session.Deadline = &deadline
	}

	if err := s.repo.Create(ctx, &session); err != nil {
		return AttemptView{}, fmt.Errorf("persist attempt: %w", err)
	}
	s.arm(session)

	s.logger.Info().Str("attempt_id", session.ID).Str("assessment_id", assessment.ID).Int("attempt_number", session.AttemptNumber).Msg("attempt started")
	return s.view(session, assessment), nil
}

func (s *attemptService) Get(ctx context.Context, userID, attemptID string) (AttemptView, error) {
	session, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	assessment, err := s.assessments.Get(ctx, session.AssessmentID)
	if err != nil {
		return AttemptView{}, err
	}
	return s.view(session, assessment), nil
}

func (s *attemptService) SaveAnswers(ctx context.Context, userID, attemptID string, answers map[string]interface{}) (AttemptView, error) {
	unlock := s.lock(attemptID)
	defer unlock()

	session, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	if !session.Open() {
		return AttemptView{}, ErrAttemptClosed
	}
	if session.Expired(s.now()) {
		return AttemptView{}, ErrAttemptExpired
	}

	assessment, err := s.assessments.Get(ctx, session.AssessmentID)
	if err != nil {
		return AttemptView{}, err
	}

	questions := make(map[string]models.Question, len(assessment.Questions))
	for i, question := range assessment.Questions {
		questions[question.Key(i)] = question
	}

	merged := datatypes.JSONMap{}
	for key, value := range session.Answers {
		merged[key] = value
	}
	for key, value := range answers {
		question, ok := questions[key]
		if !ok {
			return AttemptView{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, key)
		}
		if text, isText := value.(string); isText && question.Type == models.QuestionEssay {
			value = strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
		}
		if value == nil {
			delete(merged, key)
			continue
		}
		merged[key] = value
	}

	session.Answers = merged
	if err := s.repo.Save(ctx, &session); err != nil {
		return AttemptView{}, fmt.Errorf("save answers: %w", err)
	}
	return s.view(session, assessment), nil
}

func (s *attemptService) Submit(ctx context.Context, userID, attemptID string) (AttemptResult, error) {
	if _, err := s.owned(ctx, userID, attemptID); err != nil {
		return AttemptResult{}, err
	}
	return s.finalize(ctx, attemptID, triggerManual)
}

func (s *attemptService) Abandon(ctx context.Context, userID, attemptID string) error {
	unlock := s.lock(attemptID)
	defer unlock()

	session, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return err
	}
	if !session.Open() {
		return ErrAttemptClosed
	}

	s.disarm(attemptID)
	session.Status = models.AttemptStatusAbandoned
	if err := s.repo.Save(ctx, &session); err != nil {
		return fmt.Errorf("abandon attempt: %w", err)
	}
	s.logger.Info().Str("attempt_id", attemptID).Msg("attempt abandoned")
	return nil
}

// Resume re-arms countdowns for attempts left open by a previous process and
// auto-submits the ones whose deadline passed while it was down.
func (s *attemptService) Resume(ctx context.Context) (ResumeReport, error) {
	open, err := s.repo.ListOpen(ctx)
	if err != nil {
		return ResumeReport{}, err
	}

	var report ResumeReport
	for _, session := range open {
		if !session.Expired(s.now()) {
			s.arm(session)
			report.Rearmed++
			continue
		}
		if _, err := s.finalize(lmsclient.WithToken(ctx, session.Token), session.ID, triggerTimer); err != nil && !errors.Is(err, ErrAttemptClosed) {
			report.Failed++
			s.logger.Warn().Err(err).Str("attempt_id", session.ID).Msg("failed to auto-submit expired attempt on resume")
			continue
		}
		report.AutoSubmitted++
	}

	s.logger.Info().Int("rearmed", report.Rearmed).Int("auto_submitted", report.AutoSubmitted).Int("failed", report.Failed).Msg("attempt sessions resumed")
	return report, nil
}

// Shutdown stops every countdown. Open attempts stay persisted for Resume.
func (s *attemptService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	observability.ActiveAttemptTimers().Set(0)
}

// finalize scores and records an attempt. It is the single path for manual and
// timer-driven submission.
func (s *attemptService) finalize(ctx context.Context, attemptID, trigger string) (AttemptResult, error) {
	unlock := s.lock(attemptID)
	defer unlock()

	ctx, span := s.tracer.Start(ctx, "attempt.submit", trace.WithAttributes(
		attribute.String("attempt.id", attemptID),
		attribute.String("attempt.trigger", trigger),
	))
	defer span.End()

	session, err := s.repo.Get(ctx, attemptID)
	if err != nil {
		return AttemptResult{}, err
	}
	if !session.Open() {
		return AttemptResult{}, ErrAttemptClosed
	}
	s.disarm(attemptID)

	result, err := s.score(ctx, &session, trigger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		s.afterFailure(ctx, session, trigger, err)
		return AttemptResult{}, err
	}
	return result, nil
}

func (s *attemptService) score(ctx context.Context, session *models.AttemptSession, trigger string) (AttemptResult, error) {
	assessment, err := s.assessments.Get(ctx, session.AssessmentID)
	if err != nil {
		return AttemptResult{}, err
	}

	enrollments, err := s.enrollments.ListForUser(ctx, session.UserID)
	if err != nil {
		return AttemptResult{}, err
	}
	enrollment, ok := findEnrollmentByID(enrollments, session.EnrollmentID)
	if !ok {
		return AttemptResult{}, ErrNotEnrolled
	}

	eligibility := progress.CheckAssessmentEligibility(enrollment.Progress.FindAssessment(session.AssessmentID), assessment.EffectiveMaxAttempts())
	if !eligibility.CanTake {
		s.reject("max_attempts")
		return AttemptResult{}, fmt.Errorf("%w (%d of %d used)", progress.ErrMaxAttemptsReached, eligibility.CurrentAttempts, eligibility.MaxAttempts)
	}

	scored, err := progress.ScoreAttempt(assessment, map[string]interface{}(session.Answers))
	if err != nil {
		s.reject("no_questions")
		return AttemptResult{}, err
	}

	content, err := s.content.List(ctx, session.CourseID)
	if err != nil {
		return AttemptResult{}, err
	}
	courseAssessments, err := s.assessments.List(ctx, session.CourseID)
	if err != nil {
		return AttemptResult{}, err
	}

	now := s.now().UTC()
	startedAt := session.StartedAt
	summary, history := progress.RecordAttempt(enrollment.Progress, progress.AttemptOutcome{
		AssessmentID: assessment.ID,
		Score:        scored.Score,
		PassingScore: scored.PassingScore,
		StartedAt:    &startedAt,
	}, now)

	provisional := enrollment.Progress
	provisional.CompletedAssessments = history
	provisional.LastActivity = &now
	provisional = progress.Recompute(provisional, totalsFor(content, courseAssessments))

	confirmed, err := s.enrollments.UpdateProgress(ctx, session.UserID, enrollment.ID, progressUpdate(provisional))
	if err != nil {
		if _, refreshErr := s.enrollments.ListForUser(ctx, session.UserID); refreshErr != nil {
			s.logger.Warn().Err(refreshErr).Msg("enrollment refetch after rejected submission failed")
		}
		if _, rejected := lmsclient.AsAPIError(err); rejected {
			s.reject("upstream")
		}
		return AttemptResult{}, err
	}

	reconciliation := progress.Reconcile(provisional, confirmed.Progress, assessment.ID)
	if !reconciliation.Confirmed {
		s.logger.Info().Str("attempt_id", session.ID).Interface("mismatches", reconciliation.Mismatches).Msg("server progress differs from provisional attempt record")
	}
	if stored := confirmed.Progress.FindAssessment(assessment.ID); stored != nil {
		summary = *stored
	}

	session.Status = models.AttemptStatusSubmitted
	session.Score = &scored.Score
	session.Passed = &scored.Passed
	session.SubmittedAt = &now
	session.AutoSubmitted = trigger == triggerTimer
	if err := s.repo.Save(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("attempt_id", session.ID).Msg("failed to persist submitted attempt")
	}

	result := AttemptResult{
		Session:        *session,
		Score:          scored,
		Summary:        summary,
		Enrollment:     confirmed,
		Reconciliation: reconciliation,
	}
	if scored.Passed {
		result.Certificate = s.issueCertificate(ctx, assessment, scored.Score)
	}

	outcome := "failed"
	if scored.Passed {
		outcome = "passed"
	}
	observability.AttemptsScored().WithLabelValues(outcome, trigger).Inc()
	message := fmt.Sprintf("Assessment submitted. Score: %d%%", scored.Score)
	if trigger == triggerTimer {
		message = fmt.Sprintf("Time is up. Your answers were submitted automatically. Score: %d%%", scored.Score)
	}
	notifySuccess(ctx, s.notifier, "attempts.submit", message)

	s.logger.Info().Str("attempt_id", session.ID).Int("score", scored.Score).Bool("passed", scored.Passed).Str("trigger", trigger).Msg("attempt submitted")
	return result, nil
}

// issueCertificate returns the existing certificate for the assessment or asks the
// LMS to generate one. Failures never fail the submission.
func (s *attemptService) issueCertificate(ctx context.Context, assessment models.Assessment, score int) *models.Certificate {
	if existing := s.certificates.FindForAssessment(ctx, assessment.ID); existing != nil {
		return existing
	}
	certificate, err := s.certificates.Generate(ctx, models.CertificateRequest{
		AssessmentID: assessment.ID,
		CourseID:     assessment.Course.ID,
		Score:        score,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("assessment_id", assessment.ID).Msg("certificate generation failed")
		return nil
	}
	return &certificate
}

// afterFailure decides what happens to an attempt whose submission failed. Business
// rejections close it; transient failures leave manual attempts open for a retry.
func (s *attemptService) afterFailure(ctx context.Context, session models.AttemptSession, trigger string, cause error) {
	rejected := errors.Is(cause, progress.ErrMaxAttemptsReached) || errors.Is(cause, progress.ErrNoQuestions) || errors.Is(cause, ErrNotEnrolled)
	if apiErr, ok := lmsclient.AsAPIError(cause); ok && apiErr.StatusCode != 401 {
		rejected = true
	}

	switch {
	case rejected:
		session.Status = models.AttemptStatusAbandoned
	case trigger == triggerTimer:
		session.Status = models.AttemptStatusExpired
	default:
		s.arm(session)
		return
	}

	if err := s.repo.Save(context.WithoutCancel(ctx), &session); err != nil {
		s.logger.Error().Err(err).Str("attempt_id", session.ID).Msg("failed to close attempt after submission failure")
	}
	s.logger.Warn().Err(cause).Str("attempt_id", session.ID).Str("status", session.Status).Msg("attempt closed without a recorded score")
}

func (s *attemptService) arm(session models.AttemptSession) {
	if session.Deadline == nil {
		return
	}
	delay := session.Deadline.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	id, token := session.ID, session.Token
	armed := &armedTimer{}

	// The entry is registered before the timer starts so a zero delay callback
	// always finds it.
	s.mu.Lock()
	defer s.mu.Unlock()
	if previous, ok := s.timers[id]; ok {
		previous.Stop()
	} else {
		observability.ActiveAttemptTimers().Inc()
	}
	s.timers[id] = armed
	armed.timer = s.after(delay, func() {
		s.mu.Lock()
		current, ok := s.timers[id]
		s.mu.Unlock()
		if !ok || current != stopper(armed) {
			return
		}

		ctx := lmsclient.WithToken(context.Background(), token)
		if _, err := s.finalize(ctx, id, triggerTimer); err != nil && !errors.Is(err, ErrAttemptClosed) {
			s.logger.Warn().Err(err).Str("attempt_id", id).Msg("auto-submit failed")
		}
	})
}

func (s *attemptService) disarm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
		observability.ActiveAttemptTimers().Dec()
	}
}

// lock serialises work on one key. Entries are dropped once the last holder or
// waiter releases them.
func (s *attemptService) lock(key string) func() {
	s.mu.Lock()
	held, ok := s.locks[key]
	if !ok {
		held = &keyLock{}
		s.locks[key] = held
	}
	held.refs++
	s.mu.Unlock()

	held.mu.Lock()
	return func() {
		held.mu.Unlock()
		s.mu.Lock()
		held.refs--
		if held.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *attemptService) owned(ctx context.Context, userID, attemptID string) (models.AttemptSession, error) {
	session, err := s.repo.Get(ctx, attemptID)
	if err != nil {
		return models.AttemptSession{}, err
	}
	if session.UserID != userID {
		return models.AttemptSession{}, repository.ErrAttemptNotFound
	}
	return session, nil
}

func (s *attemptService) view(session models.AttemptSession, assessment models.Assessment) AttemptView {
	remaining := -1
	if session.Deadline != nil {
		remaining = int(session.Remaining(s.now()).Seconds())
	}
	return AttemptView{
		Session:          session,
		Assessment:       LearnerView(assessment),
		RemainingSeconds: remaining,
	}
}

func (s *attemptService) reject(reason string) {
	observability.AttemptsRejected().WithLabelValues(reason).Inc()
}

func findEnrollmentByID(enrollments []models.Enrollment, id string) (models.Enrollment, bool) {
	for _, enrollment := range enrollments {
		if enrollment.ID == id {
			return enrollment, true
		}
	}
	return models.Enrollment{}, false
}
