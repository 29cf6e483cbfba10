package auth

import (
	"errors"
	"net/http"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("account not found")
	ErrNotVerified  = errors.New("account not verified")
	ErrInvalidOTP   = errors.New("invalid or expired otp")
	ErrDelivery     = errors.New("otp delivery failed")
	ErrAuthProvider = errors.New("identity provider failed")
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError carries a client-facing reason. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StatusFor maps service errors onto HTTP status codes. Rate limiting is
// answered by ratelimit.Middleware before a handler runs.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, entity.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidOTP), errors.Is(err, ErrUnauthorized), errors.Is(err, token.ErrInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotVerified):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDelivery), errors.Is(err, ErrAuthProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
