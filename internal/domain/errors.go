package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Compare with errors.Is; every failure returned by the services wraps exactly one of these.
var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrAlreadyActive     = errors.New("sol already active")
	ErrOrderIncomplete   = errors.New("order incomplete")
	ErrAlreadyFinal      = errors.New("payment already final")
	ErrNotUploaded       = errors.New("payment not uploaded")
	ErrNotReady          = errors.New("transfer not ready")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
)

// Error is a domain failure scoped to one request: the kind, the offending id and a human message.
type Error struct {
	Kind    error
	ID      string
	Message string
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.ID, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError builds a domain error; format args apply to the message.
func NewError(kind error, id string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, ID: id, Message: fmt.Sprintf(format, args...)}
}

// KindName returns the wire name of err's kind ("NotFound", "InvalidOrder", ...) or "" for non-domain errors.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrInvalidOrder):
		return "InvalidOrder"
	case errors.Is(err, ErrAlreadyActive):
		return "AlreadyActive"
	case errors.Is(err, ErrOrderIncomplete):
		return "OrderIncomplete"
	case errors.Is(err, ErrAlreadyFinal):
		return "AlreadyFinal"
	case errors.Is(err, ErrNotUploaded):
		return "NotUploaded"
	case errors.Is(err, ErrNotReady):
		return "NotReady"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrForbidden):
		return "Forbidden"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	}
	return ""
}
