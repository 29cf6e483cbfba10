package auth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", invalid("email", "bad"), http.StatusBadRequest},
		{"entity field", &entity.FieldError{Field: "email", Reason: "invalid"}, http.StatusBadRequest},
		{"invalid otp", ErrInvalidOTP, http.StatusUnauthorized},
		{"bad token", fmt.Errorf("%w: expired", token.ErrInvalid), http.StatusUnauthorized},
		{"not verified", ErrNotVerified, http.StatusForbidden},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"delivery", fmt.Errorf("%w: smtp", ErrDelivery), http.StatusBadGateway},
		{"provider", ErrAuthProvider, http.StatusBadGateway},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
