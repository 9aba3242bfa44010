package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Error(t *testing.T) {
	err := NewAPIError("clockify", 403, "workspace forbidden")
	assert.Contains(t, err.Error(), "clockify")
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "workspace forbidden")
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("connection reset")
	err := &APIError{Service: "clockify", StatusCode: 502, Message: "bad gateway", Err: inner}
	assert.Equal(t, inner, err.Unwrap())
	assert.Contains(t, err.Error(), "connection reset")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limited", NewAPIError("clockify", 429, "slow down"), true},
		{"server error", NewAPIError("clockify", 500, "oops"), true},
		{"bad gateway", NewAPIError("clockify", 502, ""), true},
		{"unauthorized", NewAPIError("clockify", 401, "bad key"), false},
		{"not found", NewAPIError("clockify", 404, ""), false},
		{"timeout sentinel", ErrTimeout, true},
		{"unavailable sentinel", ErrUnavailable, true},
		{"duplicate op", ErrDuplicateOperation, false},
		{"invalid input", ErrInvalidInput, false},
		{"wrapped timeout", fmt.Errorf("fetch: %w", ErrTimeout), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}
