package utils

import "github.com/gofiber/fiber/v2"

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// SendSuccess sends a successful JSON response with a message.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success payload using the provided HTTP status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	return write(c, status, APIResponse{Success: true, Data: data, Message: message})
}

// OK sends a 200 success payload with optional metadata such as pagination or
// notifications raised while serving the request.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	return write(c, fiber.StatusOK, APIResponse{Success: true, Data: data, Message: message, Meta: meta})
}

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	return write(c, status, APIResponse{Message: message})
}

// SendErrorWithData sends an error response carrying a payload, e.g. a redirect hint.
func SendErrorWithData(c *fiber.Ctx, status int, message string, data interface{}) error {
	return write(c, status, APIResponse{Message: message, Data: data})
}

// Fail sends an error response with structured details such as field errors.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	return write(c, status, APIResponse{Message: message, Details: details})
}

func write(c *fiber.Ctx, status int, payload APIResponse) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	if payload.Message == "" {
		payload.Message = "error"
		if payload.Success {
			payload.Message = "success"
		}
	}
	return c.Status(status).JSON(payload)
}
