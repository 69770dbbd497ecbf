package common

import (
	"errors"
	"net/http"
	"strings"
)

// Error taxonomy shared by the REST and real-time surfaces
var (
	ErrNotFound             = errors.New("resource not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrUserNotFound         = errors.New("user not found")

	ErrAccessDenied = errors.New("access denied")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation covers empty or oversized content and missing fields
	ErrValidation = errors.New("validation error")

	// ErrTransport marks a failed delivery to one recipient
	ErrTransport = errors.New("transport error")
)

// IsNotFound reports whether err belongs to the NotFound class
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConversationNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsUserNotFound reports whether err refers to a missing user
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// ValidationMessage returns the human-readable part of a validation error
func ValidationMessage(err error) string {
	return strings.TrimSuffix(err.Error(), ": "+ErrValidation.Error())
}
