package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"gateio/internal/metrics"
)

// GlobalBucket names the limiter every request passes through.
const GlobalBucket = "global"

// Limit is a number of requests allowed per period.
type Limit struct {
	Requests int
	Period   time.Duration
}

func (l Limit) rate() rate.Limit {
	return rate.Limit(float64(l.Requests) / l.Period.Seconds())
}

func (l Limit) validate() error {
	if l.Requests <= 0 || l.Period <= 0 {
		return fmt.Errorf("invalid limit %d per %s", l.Requests, l.Period)
	}
	return nil
}

// RateLimiter applies a global limit to every request and an extra limit
// per named bucket. A bucket without its own limit only waits on the global one.
type RateLimiter struct {
	global  *rate.Limiter
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
	stats   stats
}

type stats struct {
	waits   atomic.Int64
	allowed atomic.Int64
	denied  atomic.Int64
}

// New creates a limiter allowing requests per period globally.
func New(requests int, period time.Duration) *RateLimiter {
	l := Limit{Requests: requests, Period: period}
	return &RateLimiter{
		global:  rate.NewLimiter(l.rate(), requests),
		buckets: make(map[string]*rate.Limiter),
	}
}

// SetBucketLimit gives bucket its own limit on top of the global one.
func (r *RateLimiter) SetBucketLimit(bucket string, requests int, period time.Duration) error {
	l := Limit{Requests: requests, Period: period}
	if err := l.validate(); err != nil {
		return fmt.Errorf("bucket %s: %w", bucket, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.buckets[bucket]; ok {
		existing.SetLimit(l.rate())
		existing.SetBurst(requests)
		return nil
	}
	r.buckets[bucket] = rate.NewLimiter(l.rate(), requests)
	return nil
}

func (r *RateLimiter) bucket(name string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buckets[name]
}

// Wait blocks until both the global limit and the bucket limit, if any, allow a request.
func (r *RateLimiter) Wait(ctx context.Context, bucket string) error {
	r.stats.waits.Add(1)
	started := time.Now()

	if err := r.global.Wait(ctx); err != nil {
		r.stats.denied.Add(1)
		return err
	}
	metrics.RateLimitWait.WithLabelValues(GlobalBucket).Observe(time.Since(started).Seconds())

	if limiter := r.bucket(bucket); limiter != nil {
		started = time.Now()
		if err := limiter.Wait(ctx); err != nil {
			r.stats.denied.Add(1)
			return err
		}
		metrics.RateLimitWait.WithLabelValues(bucket).Observe(time.Since(started).Seconds())
	}

	r.stats.allowed.Add(1)
	return nil
}

// Allow reports whether a request in bucket may go now. It consumes a token
// from the global limiter only when the bucket also has one.
func (r *RateLimiter) Allow(bucket string) bool {
	limiter := r.bucket(bucket)
	now := time.Now()

	if limiter == nil {
		if r.global.AllowN(now, 1) {
			r.stats.allowed.Add(1)
			return true
		}
		r.stats.denied.Add(1)
		return false
	}

	res := r.global.ReserveN(now, 1)
	if !res.OK() || res.DelayFrom(now) > 0 {
		res.CancelAt(now)
		r.stats.denied.Add(1)
		return false
	}
	if !limiter.AllowN(now, 1) {
		res.CancelAt(now)
		r.stats.denied.Add(1)
		return false
	}
	r.stats.allowed.Add(1)
	return true
}

// Stats is a point-in-time view of limiter usage.
type Stats struct {
	Waits   int64
	Allowed int64
	Denied  int64
	Buckets int
}

func (r *RateLimiter) Stats() Stats {
	r.mu.RLock()
	buckets := len(r.buckets)
	r.mu.RUnlock()
	return Stats{
		Waits:   r.stats.waits.Load(),
		Allowed: r.stats.allowed.Load(),
		Denied:  r.stats.denied.Load(),
		Buckets: buckets,
	}
}
