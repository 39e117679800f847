package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundMatching(t *testing.T) {
	err := NewNotFoundError("lto:pubkey:3Mx")

	assert.True(t, IsNotFound(err))
	assert.True(t, stderrors.Is(err, ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsBackend(err))
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "lto:pubkey:3Mx")
}

func TestBackendError(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewBackendError("get", cause)

	assert.True(t, IsBackend(err))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CategoryBackend, CategoryOf(fmt.Errorf("ctx: %w", err)))
	assert.Equal(t, "BACKEND_ERROR: storage backend error during get (caused by: connection refused)", err.Error())
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: stderrors.New("boom"), want: ""},
		{name: "validation", err: NewValidationError("height", "not a number"), want: CategoryValidation},
		{name: "configuration", err: NewConfigurationError("STORAGE_TYPE", "unknown"), want: CategoryConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryOf(tt.err))
		})
	}
}
