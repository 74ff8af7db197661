package lmsclient

import (
	"context"
	"net/http"
	"strconv"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// DashboardStats returns the admin dashboard counters.
func (c *Client) DashboardStats(ctx context.Context) (models.DashboardStats, error) {
	var out models.DashboardStats
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/admin/dashboard/stats"}, "stats", &out)
	return out, err
}

// DashboardActivities returns the most recent admin activity entries.
func (c *Client) DashboardActivities(ctx context.Context, limit int) ([]models.AdminActivity, error) {
	query := map[string]string{}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	var out []models.AdminActivity
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/admin/dashboard/activities", query: query}, "activities", &out)
	return out, err
}

// Analytics returns the admin analytics report for a period such as "30d".
func (c *Client) Analytics(ctx context.Context, period string) (models.Analytics, error) {
	query := map[string]string{}
	if period != "" {
		query["period"] = period
	}
	var out models.Analytics
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/admin/analytics", query: query}, "analytics", &out)
	return out, err
}

// ListUsers returns every user account.
func (c *Client) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	query := map[string]string{}
	if role != "" {
		query["role"] = role
	}
	var out []models.User
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/users", query: query}, "users", &out)
	return out, err
}

// GetUser returns one user.
func (c *Client) GetUser(ctx context.Context, id string) (models.User, error) {
	var out models.User
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/users/{id}", params: map[string]string{"id": id}}, "user", &out)
	return out, err
}

// UpdateUser edits a user.
func (c *Client) UpdateUser(ctx context.Context, id string, input dto.UserUpdateRequest) (models.User, error) {
	var out models.User
	err := c.into(ctx, call{method: http.MethodPut, endpoint: "/users/{id}", params: map[string]string{"id": id}, body: input}, "user", &out)
	return out, err
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, endpoint: "/users/{id}", params: map[string]string{"id": id}}, nil)
}
