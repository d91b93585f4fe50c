// Package ratelimit provides fixed-window request limiters.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the time left until the current window resets.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter counts requests per key within fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// windowStart truncates now to the start of its fixed window.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

type bucket struct {
	start time.Time
	count int
}

// Memory is a per-process limiter. Counts are not shared between instances.
type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
}

// sweepEvery controls how often stale buckets are dropped.
const sweepEvery = 1024

// NewMemory creates an in-memory limiter allowing limit requests per window.
func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow records one request for key.
func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	now := m.now()
	start := windowStart(now, m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.calls%sweepEvery == 0 {
		m.sweep(start)
	}

	b, ok := m.buckets[key]
	if !ok || !b.start.Equal(start) {
		b = &bucket{start: start}
		m.buckets[key] = b
	}
	b.count++
	return result(b.count, m.limit, start.Add(m.window)), nil
}

func (m *Memory) sweep(current time.Time) {
	for k, b := range m.buckets {
		if b.start.Before(current) {
			delete(m.buckets, k)
		}
	}
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Redis shares counters between instances with INCR and EXPIRE.
type Redis struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedis creates a Redis-backed limiter.
func NewRedis(client redis.Cmdable, limit int, window time.Duration) *Redis {
	return &Redis{client: client, limit: limit, window: window, prefix: "ratelimit:", now: time.Now}
}

// Allow records one request for key.
func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	start := windowStart(r.now(), r.window)
	redisKey := fmt.Sprintf("%s%s:%d", r.prefix, key, start.Unix())

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, r.window)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit incr: %w", err)
	}
	return result(int(incr.Val()), r.limit, start.Add(r.window)), nil
}

func result(count, limit int, reset time.Time) Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   reset,
	}
}
