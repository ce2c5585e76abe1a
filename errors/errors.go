package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrValidation      = fmt.Errorf("validation failed")
	ErrEmptyBody       = fmt.Errorf("%w: message body is empty", ErrValidation)
	ErrMissingSender   = fmt.Errorf("%w: sender is missing", ErrValidation)
	ErrMissingReceiver = fmt.Errorf("%w: receiver is missing", ErrValidation)
	ErrBodyTooLong     = fmt.Errorf("%w: message body is too long", ErrValidation)
	ErrInvalidID       = fmt.Errorf("%w: invalid message id", ErrValidation)

	ErrNotFound     = fmt.Errorf("not found")
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	ErrPersistence = fmt.Errorf("persistence failure")

	ErrDeliveryFailure = fmt.Errorf("delivery failure")
	ErrSessionClosed   = fmt.Errorf("%w: session closed", ErrDeliveryFailure)

	ErrUnauthenticated = fmt.Errorf("unauthenticated")
	ErrForbidden       = fmt.Errorf("forbidden")
)

// MapToHTTPStatus translates the error taxonomy at the transport boundary.
// Anything unknown is an opaque server error.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage hides persistence details from callers.
func PublicMessage(err error) string {
	if MapToHTTPStatus(err) == http.StatusInternalServerError {
		return "Server error"
	}
	return err.Error()
}
