package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
	"github.com/noah-isme/gema-lms-gateway/internal/progress"
	"github.com/noah-isme/gema-lms-gateway/internal/repository"
)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped
	t.stopped = true
	return active
}

type timerFactory struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (f *timerFactory) after(delay time.Duration, fn func()) stopper {
	f.mu.Lock()
	defer f.mu.Unlock()
	timer := &fakeTimer{delay: delay, fn: fn}
	f.timers = append(f.timers, timer)
	return timer
}

func (f *timerFactory) latest() *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.timers) == 0 {
		return nil
	}
	return f.timers[len(f.timers)-1]
}

type attemptHarness struct {
	lms        *fakeLMS
	svcs       services
	repo       repository.AttemptSessionRepository
	runner     *attemptService
	timers     *timerFactory
	now        time.Time
	ctx        context.Context
	assessment models.Assessment
}

func newAttemptHarness(t *testing.T) *attemptHarness {
	t.Helper()

	lms := newFakeLMS()
	assessment := seedCourse(lms, "c1", 5, 4)
	assessment.TimeLimit = 30
	lms.assessments[assessment.ID] = assessment
	enrollUser(lms, "u1", "c1", 4)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AttemptSession{}))

	h := &attemptHarness{
		lms:        lms,
		svcs:       newServices(lms),
		repo:       repository.NewAttemptSessionRepository(db),
		timers:     &timerFactory{},
		now:        time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC),
		ctx:        lmsclient.WithToken(context.Background(), "token-u1"),
		assessment: assessment,
	}
	runner := NewAttemptService(h.repo, h.svcs.assessments, h.svcs.content, h.svcs.enrollments, h.svcs.certificates, h.svcs.notifier, zerolog.Nop()).(*attemptService)
	runner.now = func() time.Time { return h.now }
	runner.after = h.timers.after
	h.runner = runner
	t.Cleanup(runner.Shutdown)
	return h
}

func (h *attemptHarness) answerAll(t *testing.T, attemptID string, correct int) {
	t.Helper()
	answers := map[string]interface{}{}
	for i, question := range h.assessment.Questions {
		if i < correct {
			answers[question.ID] = "yes"
		} else {
			answers[question.ID] = "no"
		}
	}
	_, err := h.runner.SaveAnswers(h.ctx, "u1", attemptID, answers)
	require.NoError(t, err)
}

func TestAttemptStartArmsCountdownAndResumesOpenAttempt(t *testing.T) {
	h := newAttemptHarness(t)

	view, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatusInProgress, view.Session.Status)
	require.Equal(t, 1, view.Session.AttemptNumber)
	require.Equal(t, 1800, view.RemainingSeconds)
	require.Equal(t, "token-u1", view.Session.Token)
	for _, question := range view.Assessment.Questions {
		for _, option := range question.Options {
			require.False(t, option.IsCorrect, "answer keys are hidden while answering")
		}
	}

	timer := h.timers.latest()
	require.NotNil(t, timer)
	require.Equal(t, 30*time.Minute, timer.delay)

	h.now = h.now.Add(10 * time.Minute)
	again, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, view.Session.ID, again.Session.ID)
	require.Equal(t, 1200, again.RemainingSeconds)
	require.Len(t, h.timers.timers, 1)
}

func TestAttemptStartGates(t *testing.T) {
	h := newAttemptHarness(t)
	enrollUser(h.lms, "u2", "c1", 3)

	_, err := h.runner.Start(h.ctx, "u2", h.assessment.ID)
	require.ErrorIs(t, err, progress.ErrAssessmentLocked)

	_, err = h.runner.Start(h.ctx, "u3", h.assessment.ID)
	require.ErrorIs(t, err, ErrNotEnrolled)

	exhausted := h.lms.enrollments["u1"][0]
	exhausted.Progress.CompletedAssessments = []models.CompletedAssessment{{
		Assessment: models.NewRef(h.assessment.ID),
		Score:      40,
		BestScore:  60,
		Attempts:   make([]models.AttemptRecord, 3),
	}}
	h.lms.enrollments["u1"][0] = exhausted
	_, err = h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.ErrorIs(t, err, progress.ErrMaxAttemptsReached)

	h.lms.assessments["empty"] = models.Assessment{ID: "empty", Course: models.NewRef("c1")}
	_, err = h.runner.Start(h.ctx, "u1", "empty")
	require.ErrorIs(t, err, progress.ErrNoQuestions)

	require.Empty(t, h.timers.timers)
}

func TestAttemptSaveAnswersValidatesAndSanitizes(t *testing.T) {
	h := newAttemptHarness(t)
	h.assessment.Questions = append(h.assessment.Questions, models.Question{ID: "q5", Type: models.QuestionEssay, CorrectAnswer: "Channels"})
	h.lms.assessments[h.assessment.ID] = h.assessment

	view, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)
	id := view.Session.ID

	saved, err := h.runner.SaveAnswers(h.ctx, "u1", id, map[string]interface{}{"q1": "yes", "q5": "<b>Channels</b>"})
	require.NoError(t, err)
	require.Equal(t, "Channels", saved.Session.Answers["q5"])

	saved, err = h.runner.SaveAnswers(h.ctx, "u1", id, map[string]interface{}{"q2": "no", "q1": nil})
	require.NoError(t, err)
	require.NotContains(t, saved.Session.Answers, "q1")
	require.Equal(t, "no", saved.Session.Answers["q2"])
	require.Equal(t, "Channels", saved.Session.Answers["q5"])

	_, err = h.runner.SaveAnswers(h.ctx, "u1", id, map[string]interface{}{"q99": "yes"})
	require.ErrorIs(t, err, ErrUnknownQuestion)

	_, err = h.runner.SaveAnswers(h.ctx, "u2", id, map[string]interface{}{"q1": "yes"})
	require.ErrorIs(t, err, repository.ErrAttemptNotFound)

	h.now = h.now.Add(31 * time.Minute)
	_, err = h.runner.SaveAnswers(h.ctx, "u1", id, map[string]interface{}{"q1": "yes"})
	require.ErrorIs(t, err, ErrAttemptExpired)
}

func TestAttemptSubmitScoresRecordsAndCertifies(t *testing.T) {
	h := newAttemptHarness(t)

	view, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)
	h.answerAll(t, view.Session.ID, 3)

	result, err := h.runner.Submit(h.ctx, "u1", view.Session.ID)
	require.NoError(t, err)
	require.Equal(t, 75, result.Score.Score)
	require.True(t, result.Score.Passed)
	require.Equal(t, models.AttemptStatusSubmitted, result.Session.Status)
	require.False(t, result.Session.AutoSubmitted)
	require.Equal(t, 75, *result.Session.Score)

	require.Len(t, result.Summary.Attempts, 1)
	require.Equal(t, 75, result.Summary.BestScore)
	require.True(t, result.Reconciliation.Confirmed)
	require.Equal(t, 86, result.Enrollment.Progress.OverallProgress)
	require.NotNil(t, result.Certificate)
	require.Equal(t, 1, h.lms.generated)
	require.True(t, h.timers.latest().stopped)

	require.Len(t, h.lms.progressCalls, 1)
	sent := h.lms.progressCalls[0]
	require.Len(t, sent.CompletedAssessments, 1)
	require.Equal(t, 1, sent.CompletedAssessments[0].Attempts[0].AttemptNumber)
	require.NotNil(t, sent.CompletedAssessments[0].Attempts[0].StartedAt)

	_, err = h.runner.Submit(h.ctx, "u1", view.Session.ID)
	require.ErrorIs(t, err, ErrAttemptClosed)

	second, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, 2, second.Session.AttemptNumber)
	h.answerAll(t, second.Session.ID, 4)

	retake, err := h.runner.Submit(h.ctx, "u1", second.Session.ID)
	require.NoError(t, err)
	require.Equal(t, 100, retake.Score.Score)
	require.Len(t, retake.Summary.Attempts, 2)
	require.Equal(t, 100, retake.Summary.BestScore)
	require.NotNil(t, retake.Certificate)
	require.Equal(t, 1, h.lms.generated, "an existing certificate is reused")
}

func TestAttemptTimerAutoSubmits(t *testing.T) {
	h := newAttemptHarness(t)

	view, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)
	h.answerAll(t, view.Session.ID, 4)

	h.now = h.now.Add(30 * time.Minute)
	h.timers.latest().fn()

	stored, err := h.repo.Get(context.Background(), view.Session.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatusSubmitted, stored.Status)
	require.True(t, stored.AutoSubmitted)
	require.Equal(t, 100, *stored.Score)
	require.Contains(t, h.svcs.notifier.last().Message, "Time is up")

	_, err = h.runner.SaveAnswers(h.ctx, "u1", view.Session.ID, map[string]interface{}{"q1": "no"})
	require.ErrorIs(t, err, ErrAttemptClosed)

	// a stale callback after submission is a no-op
	h.timers.latest().fn()
	require.Len(t, h.lms.progressCalls, 1)
}

func TestAttemptUpstreamRejectionClosesAttempt(t *testing.T) {
	h := newAttemptHarness(t)

	view, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)
	h.answerAll(t, view.Session.ID, 4)

	lists := h.lms.enrollmentLists
	h.lms.progressErr = &lmsclient.APIError{StatusCode: 400, Method: "PUT", Endpoint: "/enrollments/{id}/progress", Message: "Maximum attempts reached"}

	_, err = h.runner.Submit(h.ctx, "u1", view.Session.ID)
	require.Error(t, err)
	require.Equal(t, "Maximum attempts reached", h.svcs.notifier.last().Message)
	require.Greater(t, h.lms.enrollmentLists, lists+1, "enrollments are refetched after a rejected write")

	stored, err := h.repo.Get(context.Background(), view.Session.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatusAbandoned, stored.Status)
	require.Nil(t, stored.Score)
}

func TestAttemptTransientFailureKeepsManualAttemptOpen(t *testing.T) {
	h := newAttemptHarness(t)

	view, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)
	h.answerAll(t, view.Session.ID, 4)

	h.lms.progressErr = fmt.Errorf("%w: connection refused", lmsclient.ErrTransport)
	_, err = h.runner.Submit(h.ctx, "u1", view.Session.ID)
	require.ErrorIs(t, err, lmsclient.ErrTransport)

	stored, err := h.repo.Get(context.Background(), view.Session.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatusInProgress, stored.Status)
	require.Len(t, h.timers.timers, 2, "the countdown is re-armed")
	require.False(t, h.timers.latest().stopped)

	h.lms.progressErr = nil
	result, err := h.runner.Submit(h.ctx, "u1", view.Session.ID)
	require.NoError(t, err)
	require.Equal(t, 100, result.Score.Score)
	require.Len(t, result.Summary.Attempts, 1)
}

func TestAttemptTransientFailureOnTimerExpires(t *testing.T) {
	h := newAttemptHarness(t)

	view, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)

	h.lms.progressErr = fmt.Errorf("%w: timeout", lmsclient.ErrTransport)
	h.now = h.now.Add(30 * time.Minute)
	h.timers.latest().fn()

	stored, err := h.repo.Get(context.Background(), view.Session.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatusExpired, stored.Status)
}

func TestAttemptAbandon(t *testing.T) {
	h := newAttemptHarness(t)

	view, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)

	require.ErrorIs(t, h.runner.Abandon(h.ctx, "u2", view.Session.ID), repository.ErrAttemptNotFound)
	require.NoError(t, h.runner.Abandon(h.ctx, "u1", view.Session.ID))
	require.True(t, h.timers.latest().stopped)
	require.ErrorIs(t, h.runner.Abandon(h.ctx, "u1", view.Session.ID), ErrAttemptClosed)

	next, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)
	require.NotEqual(t, view.Session.ID, next.Session.ID)
	require.Equal(t, 1, next.Session.AttemptNumber, "abandoning does not consume an attempt")
	require.Empty(t, h.lms.progressCalls)
}

func TestAttemptResumeRearmsAndAutoSubmits(t *testing.T) {
	h := newAttemptHarness(t)
	ctx := context.Background()

	future := h.now.Add(20 * time.Minute)
	past := h.now.Add(-time.Minute)
	sessions := []models.AttemptSession{
		{ID: "running", Deadline: &future, Answers: datatypes.JSONMap{}},
		{ID: "untimed", Answers: datatypes.JSONMap{}},
		{ID: "overdue", Deadline: &past, Answers: datatypes.JSONMap{"q1": "yes", "q2": "yes", "q3": "yes", "q4": "yes"}},
	}
	for i := range sessions {
		sessions[i].UserID = "u1"
		sessions[i].AssessmentID = h.assessment.ID
		sessions[i].CourseID = "c1"
		sessions[i].EnrollmentID = "enr-u1-c1"
		sessions[i].AttemptNumber = 1
		sessions[i].Token = "token-u1"
		sessions[i].Status = models.AttemptStatusInProgress
		sessions[i].StartedAt = h.now.Add(-time.Hour)
		require.NoError(t, h.repo.Create(ctx, &sessions[i]))
	}

	report, err := h.runner.Resume(ctx)
	require.NoError(t, err)
	require.Equal(t, ResumeReport{Rearmed: 2, AutoSubmitted: 1}, report)
	require.Len(t, h.timers.timers, 1)
	require.Equal(t, 20*time.Minute, h.timers.timers[0].delay)

	overdue, err := h.repo.Get(ctx, "overdue")
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatusSubmitted, overdue.Status)
	require.True(t, overdue.AutoSubmitted)
	require.Equal(t, 100, *overdue.Score)

	running, err := h.repo.Get(ctx, "running")
	require.NoError(t, err)
	require.True(t, running.Open())
}

func TestAttemptZeroDelayTimerSubmits(t *testing.T) {
	h := newAttemptHarness(t)

	view, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)
	h.answerAll(t, view.Session.ID, 4)

	stored, err := h.repo.Get(context.Background(), view.Session.ID)
	require.NoError(t, err)

	h.now = h.now.Add(45 * time.Minute)
	h.runner.after = func(d time.Duration, f func()) stopper {
		return time.AfterFunc(d, f)
	}
	h.runner.arm(stored)

	require.Eventually(t, func() bool {
		return strings.Contains(h.svcs.notifier.last().Message, "Time is up")
	}, 2*time.Second, 10*time.Millisecond)

	h.runner.mu.Lock()
	_, registered := h.runner.timers[view.Session.ID]
	h.runner.mu.Unlock()
	require.False(t, registered)

	submitted, err := h.repo.Get(context.Background(), view.Session.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatusSubmitted, submitted.Status)
	require.True(t, submitted.AutoSubmitted)
}

func TestAttemptLocksAreReleased(t *testing.T) {
	h := newAttemptHarness(t)
	held := func() int {
		h.runner.mu.Lock()
		defer h.runner.mu.Unlock()
		return len(h.runner.locks)
	}

	first, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)
	require.Zero(t, held())

	h.answerAll(t, first.Session.ID, 4)
	_, err = h.runner.Submit(h.ctx, "u1", first.Session.ID)
	require.NoError(t, err)
	require.Zero(t, held())

	second, err := h.runner.Start(h.ctx, "u1", h.assessment.ID)
	require.NoError(t, err)
	require.NoError(t, h.runner.Abandon(h.ctx, "u1", second.Session.ID))
	require.Zero(t, held())
}

func TestAttemptConcurrentStartsShareOneSession(t *testing.T) {
	h := newAttemptHarness(t)

	const tabs = 4
	views := make([]AttemptView, tabs)
	errs := make([]error, tabs)
	var wg sync.WaitGroup
	for i := 0; i < tabs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i], errs[i] = h.runner.Start(h.ctx, "u1", h.assessment.ID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < tabs; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, views[0].Session.ID, views[i].Session.ID)
		require.Equal(t, 1, views[i].Session.AttemptNumber)
	}

	sessions, err := h.repo.ListByUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}
