package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryOverride_ZeroValueIsNoOp(t *testing.T) {
	base := DefaultRetryPolicy(3, 10*time.Second)
	var override RetryOverride

	got := override.Apply(base)

	assert.Equal(t, base, got)
}

func TestRetryOverride_AppliesOnlySetFields(t *testing.T) {
	base := DefaultRetryPolicy(3, 10*time.Second)
	maxRetries := 5

	got := RetryOverride{MaxRetries: &maxRetries}.Apply(base)

	assert.Equal(t, 5, got.MaxRetries)
	assert.Equal(t, base.BaseDelay, got.BaseDelay)
	assert.Equal(t, base.CapDelay, got.CapDelay)
	assert.Equal(t, base.Timeout, got.Timeout)
}

func TestRetryOverride_AppliesAllFields(t *testing.T) {
	base := DefaultRetryPolicy(3, 10*time.Second)
	maxRetries := 7
	baseDelay := 250 * time.Millisecond
	capDelay := 5 * time.Second
	timeout := 20 * time.Second

	got := RetryOverride{
		MaxRetries: &maxRetries,
		BaseDelay:  &baseDelay,
		CapDelay:   &capDelay,
		Timeout:    &timeout,
	}.Apply(base)

	assert.Equal(t, RetryPolicy{
		MaxRetries: 7,
		BaseDelay:  250 * time.Millisecond,
		CapDelay:   5 * time.Second,
		Timeout:    20 * time.Second,
	}, got)
}
