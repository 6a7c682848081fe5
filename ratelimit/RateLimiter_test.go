package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutils "github.com/delta/auction-house-server/utils/test"
)

func TestBidBucket(t *testing.T) {
	clock := testutils.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(Config{Capacity: 1, Window: 3 * time.Second, Clock: clock})
	defer rl.Stop()

	first := rl.Check("bidder:1:lot:7")
	assert.True(t, first.Allowed)
	assert.Equal(t, 0, first.Remaining)

	clock.Advance(500 * time.Millisecond)
	second := rl.Check("bidder:1:lot:7")
	assert.False(t, second.Allowed)
	assert.Equal(t, 0, second.Remaining)
	assert.InDelta(t, float64(2500*time.Millisecond), float64(second.ResetInterval), float64(time.Millisecond))

	clock.Advance(3 * time.Second)
	third := rl.Check("bidder:1:lot:7")
	assert.True(t, third.Allowed)
}

func TestKeysAreIndependent(t *testing.T) {
	clock := testutils.NewFakeClock(time.Now())
	rl := NewRateLimiter(Config{Capacity: 1, Window: 3 * time.Second, Clock: clock})

	assert.True(t, rl.Check("a").Allowed)
	assert.True(t, rl.Check("b").Allowed)
	assert.False(t, rl.Check("a").Allowed)
	assert.Equal(t, 2, rl.Len())
}

func TestAuthBucket(t *testing.T) {
	clock := testutils.NewFakeClock(time.Now())
	rl := NewRateLimiter(Config{Capacity: 5, Window: time.Minute, Clock: clock})

	for i := 0; i < 5; i++ {
		res := rl.Check("10.0.0.1")
		require.True(t, res.Allowed, "attempt %d", i)
		assert.Equal(t, 4-i, res.Remaining)
	}
	denied := rl.Check("10.0.0.1")
	assert.False(t, denied.Allowed)
	assert.InDelta(t, float64(12*time.Second), float64(denied.ResetInterval), float64(time.Millisecond))

	// refill is continuous: one token every 12 seconds
	clock.Advance(13 * time.Second)
	assert.True(t, rl.Check("10.0.0.1").Allowed)
	assert.False(t, rl.Check("10.0.0.1").Allowed)
}

func TestSweepEvictsIdleKeys(t *testing.T) {
	clock := testutils.NewFakeClock(time.Now())
	rl := NewRateLimiter(Config{Capacity: 1, Window: 3 * time.Second, Clock: clock})

	rl.Check("idle")
	clock.Advance(4 * time.Second)
	rl.Check("busy")

	assert.Equal(t, 0, rl.Sweep(), "idle for 4s is within twice the window")

	clock.Advance(3 * time.Second)
	assert.Equal(t, 1, rl.Sweep())
	assert.Equal(t, 1, rl.Len())

	assert.True(t, rl.Check("idle").Allowed, "an evicted key starts with a full bucket")
}

func TestConcurrentChecksNeverOverspend(t *testing.T) {
	clock := testutils.NewFakeClock(time.Now())
	rl := NewRateLimiter(Config{Capacity: 3, Window: time.Hour, Clock: clock})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed = map[string]int{}
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			if rl.Check(key).Allowed {
				mu.Lock()
				allowed[key]++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	for key, n := range allowed {
		assert.Equal(t, 3, n, key)
	}
}

func TestStartAndStop(t *testing.T) {
	rl := NewRateLimiter(Config{Capacity: 1, Window: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl.Start(ctx)
	rl.Check("x")
	assert.Eventually(t, func() bool { return rl.Len() == 0 }, time.Second, 5*time.Millisecond)
	rl.Stop()
	rl.Stop()
}
