package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("student 1: %w", ErrNotFound), http.StatusNotFound},
		{"conflict", fmt.Errorf("duplicate email: %w", ErrConflict), http.StatusConflict},
		{"validation", NewValidationError("status", "must be one of Active, Completed, Pending"), http.StatusBadRequest},
		{"attachment", fmt.Errorf("%w: disk full", ErrAttachment), http.StatusInternalServerError},
		{"store", fmt.Errorf("%w: connection refused", ErrStore), http.StatusInternalServerError},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"rate limit", ErrRateLimitExceeded, http.StatusTooManyRequests},
		{"app error code", New(http.StatusTeapot, "teapot", nil), http.StatusTeapot},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapErrorToStatus(tc.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	v := &ValidationError{}
	assert.NoError(t, v.ErrOrNil())

	v.Missing("name")
	v.Missing("hub")
	v.Invalid("age", "must be between 3 and 120")

	err := v.ErrOrNil()
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, []string{"name", "hub"}, v.MissingFields)
	assert.Contains(t, err.Error(), "missing required fields: name, hub")
	assert.Contains(t, err.Error(), "age must be between 3 and 120")

	var target *ValidationError
	assert.True(t, errors.As(fmt.Errorf("create student: %w", err), &target))
}
