package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "resource not found", NotFound("resource not found").Error())

	wrapped := Wrap(errors.New("underlying error"), ErrCodeInternal, "failed to process")
	assert.Equal(t, "failed to process: underlying error", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := fmt.Errorf("outer: %w", Wrap(cause, ErrCodeUnavailable, "store down"))

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, ErrCodeUnavailable, GetCode(err))
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
	}{
		{"not found", NotFound("x"), ErrCodeNotFound},
		{"conflict", Conflict("x"), ErrCodeConflict},
		{"validation", Validation("x"), ErrCodeValidation},
		{"wrap", Wrap(errors.New("boom"), ErrCodeTimeout, "op"), ErrCodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.True(t, IsAppError(tt.err, tt.code))
		})
	}
}

func TestFieldAndCode(t *testing.T) {
	err := fmt.Errorf("add: %w", &AppError{Code: ErrCodeValidation, Message: "Enter a valid email address.", Field: "email"})
	assert.True(t, IsValidation(err))
	assert.Equal(t, "email", GetField(err))
	assert.Empty(t, GetField(errors.New("plain")))
	assert.Empty(t, GetCode(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := map[ErrorCode]int{
		ErrCodeNotFound:     http.StatusNotFound,
		ErrCodeConflict:     http.StatusConflict,
		ErrCodeValidation:   http.StatusBadRequest,
		ErrCodeUnauthorized: http.StatusUnauthorized,
		ErrCodeForbidden:    http.StatusForbidden,
		ErrCodeUnavailable:  http.StatusBadGateway,
		ErrCodeTimeout:      http.StatusGatewayTimeout,
		ErrCodeInternal:     http.StatusInternalServerError,
		"":                  http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, HTTPStatus(code), "code %q", code)
	}
}
