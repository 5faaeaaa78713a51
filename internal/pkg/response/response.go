package response

import (
	"errors"

	"sol-backend/internal/domain"
	"sol-backend/internal/infrastructure/locking"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// SuccessBody is the standardized success JSON shape.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody is the standardized error JSON shape.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail is the nested error object.
type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

const statusSuccess = "success"
const statusError = "error"

// Success sends a 200 OK response with the standard success format.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusOK).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// SuccessCreated sends a 201 Created response with the standard success format.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusCreated).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error sends a response with the standard error format.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Details:    details,
		},
	})
}

// Unauthorized sends 401 with the same shape as other errors.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

// StatusFor maps a service error to its HTTP status; unknown errors are 500.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyActive),
		errors.Is(err, domain.ErrAlreadyFinal),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, locking.ErrBusy),
		errors.Is(err, locking.ErrLockLost):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrOrderIncomplete),
		errors.Is(err, domain.ErrNotUploaded),
		errors.Is(err, domain.ErrNotReady):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

// FromError renders a service error. Domain errors carry their kind and offending id in details;
// anything else is logged and reported as a bare 500.
func FromError(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	if code == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return Error(c, "Internal Server Error", code, nil)
	}
	details := map[string]interface{}{"kind": domain.KindName(err)}
	var de *domain.Error
	if errors.As(err, &de) {
		details["id"] = de.ID
		return Error(c, de.Message, code, details)
	}
	if errors.Is(err, locking.ErrBusy) || errors.Is(err, locking.ErrLockLost) {
		details["kind"] = "Busy"
	}
	return Error(c, err.Error(), code, details)
}
