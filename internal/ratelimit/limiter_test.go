package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := New(5, time.Second)

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(""), "request %d should be allowed", i+1)
	}

	assert.False(t, limiter.Allow(""), "request 6 should be blocked")
}

func TestRateLimiter_Wait(t *testing.T) {
	limiter := New(5, 100*time.Millisecond)

	for i := 0; i < 5; i++ {
		assert.NoError(t, limiter.Wait(context.Background(), ""))
	}
	assert.Equal(t, int64(5), limiter.Stats().Allowed)
}

func TestRateLimiter_Wait_ContextCancellation(t *testing.T) {
	limiter := New(1, time.Second)

	require.NoError(t, limiter.Wait(context.Background(), ""))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, limiter.Wait(ctx, ""))
	assert.Equal(t, int64(1), limiter.Stats().Denied)
}

func TestRateLimiter_BucketLimit(t *testing.T) {
	limiter := New(100, time.Second)
	require.NoError(t, limiter.SetBucketLimit("orders", 2, time.Second))

	assert.True(t, limiter.Allow("orders"))
	assert.True(t, limiter.Allow("orders"))
	assert.False(t, limiter.Allow("orders"), "third order should hit the bucket limit")

	assert.True(t, limiter.Allow(""), "unbucketed requests only use the global limit")
	assert.Equal(t, 1, limiter.Stats().Buckets)
}

func TestRateLimiter_BucketDeniedKeepsGlobalToken(t *testing.T) {
	limiter := New(3, time.Second)
	require.NoError(t, limiter.SetBucketLimit("orders", 1, time.Second))

	assert.True(t, limiter.Allow("orders"))
	assert.False(t, limiter.Allow("orders"))

	assert.True(t, limiter.Allow(""))
	assert.True(t, limiter.Allow(""))
	assert.False(t, limiter.Allow(""))
}

func TestRateLimiter_SetBucketLimit_Invalid(t *testing.T) {
	limiter := New(10, time.Second)

	tests := []struct {
		name     string
		requests int
		period   time.Duration
	}{
		{"zero requests", 0, time.Second},
		{"negative requests", -1, time.Second},
		{"zero period", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, limiter.SetBucketLimit("orders", tt.requests, tt.period))
		})
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	limiter := New(100, time.Second)

	var wg sync.WaitGroup
	results := make(chan bool, 200)

	for i := 0; i < 200; i++ {
		wg.Go(func() {
			results <- limiter.Allow("")
		})
	}
	wg.Wait()
	close(results)

	allowed := 0
	for ok := range results {
		if ok {
			allowed++
		}
	}
	// tokens refill while the goroutines run
	assert.GreaterOrEqual(t, allowed, 100)
	assert.Less(t, allowed, 120)
}
