package lmsclient

import (
	"context"
	"net/http"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// ListAssessments returns assessments, optionally restricted to a course.
func (c *Client) ListAssessments(ctx context.Context, courseID string) ([]models.Assessment, error) {
	query := map[string]string{}
	if courseID != "" {
		query["courseId"] = courseID
	}
	var out []models.Assessment
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/assessments", query: query}, "assessments", &out)
	return out, err
}

// GetAssessment returns one assessment including its answer key.
func (c *Client) GetAssessment(ctx context.Context, id string) (models.Assessment, error) {
	var out models.Assessment
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/assessments/{id}", params: map[string]string{"id": id}}, "assessment", &out)
	return out, err
}

// CreateAssessment creates an assessment.
func (c *Client) CreateAssessment(ctx context.Context, input dto.AssessmentInput) (models.Assessment, error) {
	var out models.Assessment
	err := c.into(ctx, call{method: http.MethodPost, endpoint: "/assessments", body: input}, "assessment", &out)
	return out, err
}

// UpdateAssessment edits an assessment.
func (c *Client) UpdateAssessment(ctx context.Context, id string, input dto.AssessmentInput) (models.Assessment, error) {
	var out models.Assessment
	err := c.into(ctx, call{method: http.MethodPut, endpoint: "/assessments/{id}", params: map[string]string{"id": id}, body: input}, "assessment", &out)
	return out, err
}

// DeleteAssessment removes an assessment.
func (c *Client) DeleteAssessment(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, endpoint: "/assessments/{id}", params: map[string]string{"id": id}}, nil)
}
