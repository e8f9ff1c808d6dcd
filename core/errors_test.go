package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrTransientFetch))
	assert.True(t, IsRetryable(fmt.Errorf("fetching url: %w", ErrTransientFetch)))
	assert.True(t, IsRetryable(NewStoreWriteError("graph", "img:abc", errors.New("connection reset"))))
	assert.False(t, IsRetryable(ErrValidation))
	assert.False(t, IsRetryable(ErrInvalidPayload))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(errors.New("something else")))
}

func TestStoreWriteError_Context(t *testing.T) {
	cause := errors.New("timeout")
	err := NewStoreWriteError("vector", "doc-42:3", cause)

	assert.ErrorIs(t, err, ErrStoreWrite)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "vector")
	assert.Contains(t, err.Error(), "doc-42:3")
}
