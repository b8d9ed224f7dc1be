package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := New(0.001, 2)
	assert.True(t, l.Allow("ada"))
	assert.True(t, l.Allow("ada"))
	assert.False(t, l.Allow("ada"))
	assert.True(t, l.Allow("grace"), "keys have separate buckets")
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("ada"))
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	assert.True(t, l.Allow("ada"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "ada"))
}
