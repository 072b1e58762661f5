package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunErrorWrapsSentinel(t *testing.T) {
	err := NewRunError("GetByID", "run-1", ErrRunNotFound)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.Contains(t, err.Error(), "run-1")
	assert.Contains(t, err.Error(), "GetByID")
}

func TestVersionConflictSurvivesWrapping(t *testing.T) {
	err := NewRunError("CompareAndSwap", "run-1", ErrVersionConflict)

	assert.True(t, errors.Is(err, ErrVersionConflict))
	assert.False(t, errors.Is(err, ErrRunNotFound))
}

func TestAutomationErrorUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := NewAutomationError("Save", "auto-1", inner)

	assert.Equal(t, inner, errors.Unwrap(err))
}
