package lmsclient

import (
	"context"
	"net/http"
	"strconv"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// ListCourses returns the catalog filtered by query.
func (c *Client) ListCourses(ctx context.Context, query dto.CourseQuery) ([]models.Course, error) {
	params := map[string]string{}
	if query.Search != "" {
		params["search"] = query.Search
	}
	if query.Category != "" {
		params["category"] = query.Category
	}
	if query.Level != "" {
		params["level"] = query.Level
	}
	if query.Page > 0 {
		params["page"] = strconv.Itoa(query.Page)
	}
	if query.Limit > 0 {
		params["limit"] = strconv.Itoa(query.Limit)
	}

	var out []models.Course
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/courses", query: params}, "courses", &out)
	return out, err
}

// GetCourse returns one course.
func (c *Client) GetCourse(ctx context.Context, id string) (models.Course, error) {
	var out models.Course
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/courses/{id}", params: map[string]string{"id": id}}, "course", &out)
	return out, err
}

// CreateCourse creates a course.
func (c *Client) CreateCourse(ctx context.Context, input dto.CourseInput) (models.Course, error) {
	var out models.Course
	err := c.into(ctx, call{method: http.MethodPost, endpoint: "/courses", body: input}, "course", &out)
	return out, err
}

// UpdateCourse replaces a course's editable fields.
func (c *Client) UpdateCourse(ctx context.Context, id string, input dto.CourseInput) (models.Course, error) {
	var out models.Course
	err := c.into(ctx, call{method: http.MethodPut, endpoint: "/courses/{id}", params: map[string]string{"id": id}, body: input}, "course", &out)
	return out, err
}

// DeleteCourse removes a course.
func (c *Client) DeleteCourse(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, endpoint: "/courses/{id}", params: map[string]string{"id": id}}, nil)
}

// ListCategories returns every course category.
func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/categories"}, "categories", &out)
	return out, err
}

// CreateCategory creates a category.
func (c *Client) CreateCategory(ctx context.Context, input dto.CategoryInput) (models.Category, error) {
	var out models.Category
	err := c.into(ctx, call{method: http.MethodPost, endpoint: "/categories", body: input}, "category", &out)
	return out, err
}

// UpdateCategory edits a category.
func (c *Client) UpdateCategory(ctx context.Context, id string, input dto.CategoryInput) (models.Category, error) {
	var out models.Category
	err := c.into(ctx, call{method: http.MethodPut, endpoint: "/categories/{id}", params: map[string]string{"id": id}, body: input}, "category", &out)
	return out, err
}

// DeleteCategory removes a category.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, endpoint: "/categories/{id}", params: map[string]string{"id": id}}, nil)
}
