package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoffSucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(5, time.Millisecond, 4*time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoffReturnsLastError(t *testing.T) {
	attempts := 0
	last := errors.New("still down")
	err := RetryWithBackoff(3, time.Millisecond, 2*time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("earlier")
		}
		return last
	})
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, attempts)
}
