package lmsclient

import (
	"context"
	"net/http"

	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// ListEnrollments returns every enrollment of a user.
func (c *Client) ListEnrollments(ctx context.Context, userID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/enrollments/user/{userId}", params: map[string]string{"userId": userID}}, "enrollments", &out)
	return out, err
}

// Enroll enrolls the current user in a course.
func (c *Client) Enroll(ctx context.Context, courseID string) (models.Enrollment, error) {
	var out models.Enrollment
	err := c.into(ctx, call{method: http.MethodPost, endpoint: "/enrollments", body: map[string]string{"courseId": courseID}}, "enrollment", &out)
	return out, err
}

// UpdateProgress writes the progress document of an enrollment.
func (c *Client) UpdateProgress(ctx context.Context, enrollmentID string, update models.ProgressUpdate) (models.Enrollment, error) {
	var out models.Enrollment
	err := c.into(ctx, call{
		method:   http.MethodPut,
		endpoint: "/enrollments/{id}/progress",
		params:   map[string]string{"id": enrollmentID},
		body:     update,
	}, "enrollment", &out)
	return out, err
}

// AssessmentStatus returns the server's view of attempts on an assessment.
func (c *Client) AssessmentStatus(ctx context.Context, enrollmentID, assessmentID string) (models.AssessmentStatus, error) {
	var out models.AssessmentStatus
	err := c.into(ctx, call{
		method:   http.MethodGet,
		endpoint: "/enrollments/{id}/assessment-status/{assessmentId}",
		params:   map[string]string{"id": enrollmentID, "assessmentId": assessmentID},
	}, "status", &out)
	return out, err
}
