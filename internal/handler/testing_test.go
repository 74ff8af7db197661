package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-gateway/internal/middleware"
	"github.com/noah-isme/gema-lms-gateway/internal/models"
	"github.com/noah-isme/gema-lms-gateway/internal/session"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Meta    struct {
		Notifications []struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		} `json:"notifications"`
	} `json:"meta"`
	Details map[string]string `json:"details"`
}

var testLogger = zerolog.New(io.Discard)

func testValidator() *validator.Validate {
	return validator.New()
}

// newTestApp mimics the production pipeline: notifications are recorded per request
// and the identity normally restored by Authenticate is read from test headers.
func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.Notifications())
	app.Use(func(c *fiber.Ctx) error {
		userID := c.Get("X-Test-User")
		if userID == "" {
			return c.Next()
		}
		role := c.Get("X-Test-Role")
		if role == "" {
			role = models.RoleStudent
		}
		c.Locals("user_id", userID)
		c.Locals("user_role", role)
		c.Locals("token", "token-"+userID)
		c.Locals("session", session.Session{Token: "token-" + userID, User: models.User{ID: userID, Name: "Test " + userID, Role: role}})
		return c.Next()
	})
	return app
}

func newRequest(method, target string, body interface{}) *http.Request {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func as(req *http.Request, userID, role string) *http.Request {
	req.Header.Set("X-Test-User", userID)
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	return req
}

func perform(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	var body envelope
	decodeResponse(t, resp, &body)
	return resp, body
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func decodeData(t *testing.T, body envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body.Data, target))
}
