package lmsclient

import (
	"context"
	"net/http"

	"github.com/noah-isme/gema-lms-gateway/internal/dto"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
)

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, req dto.LoginRequest) (models.AuthResult, error) {
	var out models.AuthResult
	err := c.do(ctx, call{method: http.MethodPost, endpoint: "/auth/login", body: req}, &out)
	return out, err
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (models.AuthResult, error) {
	var out models.AuthResult
	err := c.do(ctx, call{method: http.MethodPost, endpoint: "/auth/register", body: req}, &out)
	return out, err
}

// Me returns the user the context token belongs to.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var out models.User
	err := c.into(ctx, call{method: http.MethodGet, endpoint: "/auth/me"}, "user", &out)
	return out, err
}

// UpdateProfile edits the current user's profile.
func (c *Client) UpdateProfile(ctx context.Context, req dto.ProfileUpdateRequest) (models.User, error) {
	var out models.User
	err := c.into(ctx, call{method: http.MethodPut, endpoint: "/auth/profile", body: req}, "user", &out)
	return out, err
}

// ChangePassword changes the current user's password.
func (c *Client) ChangePassword(ctx context.Context, req dto.PasswordChangeRequest) error {
	return c.do(ctx, call{method: http.MethodPut, endpoint: "/auth/password", body: req}, nil)
}
