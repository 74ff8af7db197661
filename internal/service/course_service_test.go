package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/lmsclient"
)

func TestCourseServiceValidatesBeforeCallingLMS(t *testing.T) {
	lms := newFakeLMS()
	notifier := &captureNotifier{}
	svc := NewCourseService(lms, validator.New(), notifier, zerolog.Nop())

	_, err := svc.Create(context.Background(), dto.CourseInput{Title: "Go", Level: "expert"})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	require.Empty(t, lms.courses)
	require.Empty(t, notifier.levels())

	_, err = svc.List(context.Background(), dto.CourseQuery{Limit: 500})
	require.ErrorAs(t, err, &validationErrs)

	_, err = svc.Get(context.Background(), "  ")
	require.Error(t, err)
}

func TestCourseServiceNotifiesOutcome(t *testing.T) {
	lms := newFakeLMS()
	notifier := &captureNotifier{}
	svc := NewCourseService(lms, validator.New(), notifier, zerolog.Nop())

	course, err := svc.Create(context.Background(), dto.CourseInput{Title: "Concurrency in Go", Level: "advanced"})
	require.NoError(t, err)
	require.Contains(t, lms.courses, course.ID)
	require.Equal(t, Notification{Level: LevelSuccess, Operation: "courses.create", Message: "Course created successfully"}, notifier.last())

	rejecting := NewCourseService(rejectingLMS{fakeLMS: lms, err: &lmsclient.APIError{StatusCode: 409, Message: "Course title already exists"}}, validator.New(), notifier, zerolog.Nop())
	_, err = rejecting.Create(context.Background(), dto.CourseInput{Title: "Concurrency in Go"})
	require.Error(t, err)
	require.Equal(t, LevelError, notifier.last().Level)
	require.Equal(t, "Course title already exists", notifier.last().Message)
}
