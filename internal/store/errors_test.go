package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrorChains(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.Is(ErrTaskNotFound, ErrNotFound))
	assert.True(t, errors.Is(ErrTaskExists, ErrDuplicate))
	assert.False(t, errors.Is(ErrConflict, ErrNotFound))

	assert.True(t, IsNotFoundError(ErrTaskNotFound))
	assert.False(t, IsNotFoundError(ErrConflict))
	assert.True(t, IsConflictError(ErrConflict))
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	underlying := errors.New("connection reset")
	err := NewStoreError("task", "update", "save failed", underlying)

	assert.Contains(t, err.Error(), "update operation on task failed")
	assert.Contains(t, err.Error(), "connection reset")
	assert.True(t, errors.Is(err, underlying))

	// Wrapped sentinels remain checkable through the StoreError
	wrapped := NewStoreError("task", "get", "lookup failed", ErrTaskNotFound)
	assert.True(t, errors.Is(wrapped, ErrNotFound))

	bare := NewStoreError("task", "add", "validation rejected", nil)
	assert.Equal(t, "add operation on task failed: validation rejected", bare.Error())
}
