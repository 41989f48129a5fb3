package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrUnauthorized, ErrForbidden, ErrInternal,
		ErrConflict, ErrServiceUnavail, ErrPaymentFailed, ErrRateLimited,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	withCause := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: fmt.Errorf("redis down")}
	assert.Contains(t, withCause.Error(), "INTERNAL_ERROR")
	assert.Contains(t, withCause.Error(), "redis down")

	bare := &AppError{Code: "NOT_FOUND", Message: "wizard not found"}
	assert.Equal(t, "NOT_FOUND: wizard not found", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("wizard", "w-1"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"invalid input", InvalidInput("bad"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("no token"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("not yours"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"conflict", Conflict("already submitting"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"unavailable", ServiceUnavailable("backend down"), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail},
		{"rate limited", RateLimited("slow down"), "RATE_LIMITED", http.StatusTooManyRequests, ErrRateLimited},
		{"payment failed", PaymentFailed("declined", nil), "PAYMENT_FAILED", http.StatusUnprocessableEntity, ErrPaymentFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	err := NotFound("wizard", "abc-123")
	assert.Contains(t, err.Message, "wizard")
	assert.Contains(t, err.Message, "abc-123")
}

func TestPaymentFailed_KeepsCause(t *testing.T) {
	cause := errors.New("order creation failed")
	err := PaymentFailed("order creation failed", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(err))
}

func TestInternal(t *testing.T) {
	err := Internal(fmt.Errorf("segfault"))
	assert.Equal(t, "INTERNAL_ERROR", err.Code)
	assert.Contains(t, err.Error(), "segfault")
}

func TestHTTPStatus_SentinelErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrPaymentFailed, http.StatusUnprocessableEntity},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrServiceUnavail, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatus_WrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrNotFound)
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))
}

func TestHTTPStatus_UnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("unknown")))
}
