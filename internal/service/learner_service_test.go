package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

func TestLearnerDashboardDerivesProgressFromCourseTotals(t *testing.T) {
	lms := newFakeLMS()
	seedCourse(lms, "c1", 4, 2)
	seedCourse(lms, "c2", 2, 2)
	first := enrollUser(lms, "u1", "c1", 2)
	first.Progress.OverallProgress = 10
	lms.enrollments["u1"][0] = first
	enrollUser(lms, "u1", "c2", 2)

	svcs := newServices(lms)
	dashboard, err := svcs.learner.Dashboard(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, dashboard.Enrollments, 2)

	byCourse := map[string]DashboardEntry{}
	for _, entry := range dashboard.Enrollments {
		byCourse[entry.Enrollment.Course.ID] = entry
	}
	require.True(t, byCourse["c1"].Derived)
	require.Equal(t, 50, byCourse["c1"].Progress.ContentProgress)
	require.Equal(t, 35, byCourse["c1"].Progress.OverallProgress, "stored value is ignored when totals are known")
	require.False(t, byCourse["c1"].Progress.AssessmentUnlocked)
	require.Equal(t, 70, byCourse["c2"].Progress.OverallProgress)
	require.True(t, byCourse["c2"].Progress.AssessmentUnlocked)

	require.Equal(t, DashboardSummary{Enrolled: 2, InProgress: 2, AverageProgress: 52}, dashboard.Summary)
}

func TestLearnerDashboardFallsBackToStoredProgress(t *testing.T) {
	lms := newFakeLMS()
	seedCourse(lms, "c1", 4, 1)
	enrollment := enrollUser(lms, "u1", "c1", 1)
	enrollment.Progress.OverallProgress = 42
	lms.enrollments["u1"][0] = enrollment
	lms.contentErr = &lmsclient.APIError{StatusCode: 500, Method: "GET", Endpoint: "/content/course/{courseId}", Message: "boom"}

	dashboard, err := newServices(lms).learner.Dashboard(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, dashboard.Enrollments, 1)
	require.False(t, dashboard.Enrollments[0].Derived)
	require.Equal(t, 42, dashboard.Enrollments[0].Progress.OverallProgress)
}

func TestLearnerCompleteContentConfirmsWithServer(t *testing.T) {
	lms := newFakeLMS()
	seedCourse(lms, "c1", 5, 1)
	enrollUser(lms, "u1", "c1", 2)
	svcs := newServices(lms)
	ctx := context.Background()

	completion, err := svcs.learner.CompleteContent(ctx, "u1", "c1", "c1-c3")
	require.NoError(t, err)
	require.False(t, completion.AlreadyComplete)
	require.Equal(t, 60, completion.Progress.ContentProgress)
	require.Equal(t, 42, completion.Progress.OverallProgress)
	require.NotNil(t, completion.Reconciliation)
	require.True(t, completion.Reconciliation.Confirmed)
	require.Len(t, completion.Enrollment.Progress.CompletedContent, 3)

	require.Len(t, lms.progressCalls, 1)
	require.Equal(t, 42, lms.progressCalls[0].OverallProgress)
	require.Equal(t, []string{LevelSuccess}, svcs.notifier.levels())

	cached := svcs.enrollments.Snapshot("u1")
	require.True(t, cached.HasData)
	require.True(t, cached.Data[0].Progress.HasCompletedContent("c1-c3"))

	again, err := svcs.learner.CompleteContent(ctx, "u1", "c1", "c1-c3")
	require.NoError(t, err)
	require.True(t, again.AlreadyComplete)
	require.Len(t, lms.progressCalls, 1, "completing twice does not write again")
}

func TestLearnerCompleteContentRevertsOnFailure(t *testing.T) {
	lms := newFakeLMS()
	seedCourse(lms, "c1", 4, 1)
	enrollUser(lms, "u1", "c1", 1)
	lms.progressErr = &lmsclient.APIError{StatusCode: 400, Method: "PUT", Endpoint: "/enrollments/{id}/progress", Message: "Invalid progress"}
	svcs := newServices(lms)
	ctx := context.Background()

	_, err := svcs.learner.CompleteContent(ctx, "u1", "c1", "c1-c2")
	require.Error(t, err)
	require.Equal(t, "Invalid progress", svcs.notifier.last().Message)
	require.Equal(t, LevelError, svcs.notifier.last().Level)

	enrollment, enrolled, err := svcs.enrollments.FindByCourse(ctx, "u1", "c1")
	require.NoError(t, err)
	require.True(t, enrolled)
	require.False(t, enrollment.Progress.HasCompletedContent("c1-c2"))
	require.Len(t, enrollment.Progress.CompletedContent, 1)
}

func TestLearnerCompleteContentGuards(t *testing.T) {
	lms := newFakeLMS()
	seedCourse(lms, "c1", 2, 1)
	seedCourse(lms, "c2", 2, 1)
	enrollUser(lms, "u1", "c1", 0)
	svcs := newServices(lms)
	ctx := context.Background()

	_, err := svcs.learner.CompleteContent(ctx, "u1", "c2", "c2-c1")
	require.ErrorIs(t, err, ErrNotEnrolled)

	_, err = svcs.learner.CompleteContent(ctx, "u1", "c1", "c2-c1")
	require.ErrorIs(t, err, ErrContentNotInCourse)
	require.Empty(t, lms.progressCalls)
}

func TestLearnerEnrollRejectsDuplicates(t *testing.T) {
	lms := newFakeLMS()
	seedCourse(lms, "c1", 2, 1)
	svcs := newServices(lms)
	ctx := lmsclient.WithToken(context.Background(), "u2")

	enrollment, err := svcs.learner.Enroll(ctx, "u2", "c1")
	require.NoError(t, err)
	require.True(t, enrollment.Course.Is("c1"))
	require.Equal(t, models.EnrollmentStatusActive, enrollment.Status)

	_, err = svcs.learner.Enroll(ctx, "u2", "c1")
	require.ErrorIs(t, err, ErrAlreadyEnrolled)
}

func TestLearnerCourseDetailHidesAnswersAndGates(t *testing.T) {
	lms := newFakeLMS()
	seedCourse(lms, "c1", 5, 2)
	enrollUser(lms, "u1", "c1", 4)
	svcs := newServices(lms)
	ctx := context.Background()

	detail, err := svcs.learner.CourseDetail(ctx, "u1", "c1")
	require.NoError(t, err)
	require.True(t, detail.Enrolled)
	require.Equal(t, 80, detail.Progress.ContentProgress)
	require.Len(t, detail.Content, 5)
	require.Len(t, detail.Assessments, 1)

	view := detail.Assessments[0]
	require.True(t, view.Unlocked)
	require.True(t, view.Eligibility.CanTake)
	require.Equal(t, 70, view.PassingScore)
	for _, question := range view.Assessment.Questions {
		require.Nil(t, question.CorrectAnswer)
		for _, option := range question.Options {
			require.False(t, option.IsCorrect)
		}
	}

	completed := 0
	for _, item := range detail.Content {
		if item.Completed {
			completed++
		}
	}
	require.Equal(t, 4, completed)

	anonymous, err := svcs.learner.CourseDetail(ctx, "someone-else", "c1")
	require.NoError(t, err)
	require.False(t, anonymous.Enrolled)
	require.Nil(t, anonymous.Progress)
	require.False(t, anonymous.Assessments[0].Eligibility.CanTake)
}
