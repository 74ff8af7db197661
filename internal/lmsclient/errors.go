package lmsclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTransport wraps network failures reaching the LMS server.
	ErrTransport = errors.New("lms server unreachable")
	// ErrUnauthorized is returned for 401 responses; the session is torn down.
	ErrUnauthorized = errors.New("session expired")
	// ErrForbidden is returned for 403 responses.
	ErrForbidden = errors.New("you do not have permission to perform this action")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("resource not found")
	// ErrDecode is returned when a response body cannot be decoded.
	ErrDecode = errors.New("unexpected response from lms server")
)

// APIError is a non-2xx response from the LMS server. Message is the server's own
// wording and is safe to surface verbatim.
type APIError struct {
	StatusCode int
	Method     string
	Endpoint   string
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Endpoint, e.StatusCode, e.Message)
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	default:
		return false
	}
}

// IsValidation reports whether the error is a client-side validation rejection.
func (e *APIError) IsValidation() bool {
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity || e.StatusCode == http.StatusConflict
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Errors  []struct {
		Field   string `json:"field"`
		Param   string `json:"param"`
		Path    string `json:"path"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	} `json:"errors"`
}

func parseAPIError(method, endpoint string, status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Method: method, Endpoint: endpoint}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Message = strings.TrimSpace(parsed.Message)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(parsed.Error)
		}
		for _, item := range parsed.Errors {
			field := firstNonEmpty(item.Field, item.Param, item.Path)
			message := firstNonEmpty(item.Message, item.Msg)
			if message == "" {
				continue
			}
			if apiErr.Fields == nil {
				apiErr.Fields = map[string]string{}
			}
			apiErr.Fields[field] = message
			if apiErr.Message == "" {
				apiErr.Message = message
			}
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = strings.ToLower(http.StatusText(status))
	}
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
