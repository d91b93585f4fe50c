package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemory_FixedWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	lim := NewMemory(3, time.Minute)
	lim.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := lim.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, _ := lim.Allow(ctx, "user-1")
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.Minute, res.RetryAfter(clock.Now()))

	other, _ := lim.Allow(ctx, "user-2")
	assert.True(t, other.Allowed, "keys are counted independently")

	clock.Advance(time.Minute)
	res, _ = lim.Allow(ctx, "user-1")
	assert.True(t, res.Allowed, "new window resets the count")
	assert.Equal(t, 2, res.Remaining)
}

func TestMemory_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	lim := NewMemory(10, time.Second)
	lim.now = clock.Now
	ctx := context.Background()

	_, _ = lim.Allow(ctx, "stale")
	clock.Advance(2 * time.Second)
	for i := 0; i < sweepEvery; i++ {
		_, _ = lim.Allow(ctx, "fresh")
	}
	assert.Equal(t, 1, lim.Len())
}

func TestMemory_Concurrent(t *testing.T) {
	lim := NewMemory(50, time.Hour)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := lim.Allow(context.Background(), "k")
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestRedis_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 30, 0, time.UTC)}
	lim := NewRedis(client, 2, time.Minute)
	lim.now = clock.Now
	ctx := context.Background()

	res, err := lim.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC), res.ResetAt)

	res, _ = lim.Allow(ctx, "ip:10.0.0.1")
	assert.True(t, res.Allowed)
	res, _ = lim.Allow(ctx, "ip:10.0.0.1")
	assert.False(t, res.Allowed)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Greater(t, mr.TTL(keys[0]), time.Duration(0))

	clock.Advance(time.Minute)
	res, _ = lim.Allow(ctx, "ip:10.0.0.1")
	assert.True(t, res.Allowed)
}
