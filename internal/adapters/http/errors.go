package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/fieldnav/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int      `json:"status"`
	Code      string   `json:"code"`    // bad_request, validation_failed, not_found, storage_unavailable, ...
	Message   string   `json:"message"` // Human-readable message
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	return writeError(c, APIError{Status: status, Code: code, Message: message})
}

func writeError(c *fiber.Ctx, e APIError) error {
	e.RequestID, _ = c.Locals("requestid").(string)
	return c.Status(e.Status).JSON(e)
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errValidation returns a 400 error listing every field problem.
func errValidation(c *fiber.Ctx, verr *domain.ValidationError) error {
	return writeError(c, APIError{
		Status:  fiber.StatusBadRequest,
		Code:    "validation_failed",
		Message: verr.Error(),
		Details: verr.Problems,
	})
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errUnavailable returns a retryable 503 error.
func errUnavailable(c *fiber.Ctx, code, msg string) error {
	c.Set(fiber.HeaderRetryAfter, "1")
	return newError(c, fiber.StatusServiceUnavailable, code, msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// writeDomainError maps core errors onto HTTP responses.
func writeDomainError(c *fiber.Ctx, err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return errValidation(c, verr)
	case domain.IsNotFound(err):
		return errNotFound(c, err.Error())
	case domain.IsStorage(err):
		LoggerFromCtx(c.UserContext()).Error("customer storage failed", "error", err)
		return errUnavailable(c, "storage_unavailable", "customer storage is unavailable, retry shortly")
	case errors.Is(err, domain.ErrMessagingUnavailable):
		return errUnavailable(c, "messaging_unavailable", "position relay is unavailable")
	default:
		LoggerFromCtx(c.UserContext()).Error("request failed", "error", err)
		return errInternal(c, "internal server error")
	}
}
