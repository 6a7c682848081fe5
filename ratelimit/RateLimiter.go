// Package ratelimit provides keyed token-bucket limiters used to throttle bid
// submission and authentication attempts.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/delta/auction-house-server/utils"
)

// Config configures a RateLimiter. The bucket holds Capacity tokens and
// refills continuously at Capacity/Window.
type Config struct {
	Capacity int
	Window   time.Duration
	// Clock defaults to utils.SystemClock
	Clock utils.Clock
}

// Result is the outcome of a Check
type Result struct {
	Allowed bool
	// Remaining is the number of whole tokens left after this check
	Remaining int
	// ResetInterval is how long until the next token is available when the
	// check was denied, or until the bucket is full again when it was allowed
	ResetInterval time.Duration
}

type bucket struct {
	sync.Mutex
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a set of token buckets keyed by string. Each key has its own
// lock; the key map is only write-locked to add or evict keys.
type RateLimiter struct {
	logger   *logrus.Entry
	capacity int
	window   time.Duration
	limit    rate.Limit
	clock    utils.Clock

	bucketsLock sync.RWMutex
	buckets     map[string]*bucket

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewRateLimiter creates a RateLimiter. Call Start to evict idle keys in the
// background and Stop to tear it down.
func NewRateLimiter(config Config) *RateLimiter {
	if config.Capacity <= 0 {
		config.Capacity = 1
	}
	if config.Window <= 0 {
		config.Window = time.Second
	}
	if config.Clock == nil {
		config.Clock = utils.SystemClock
	}

	return &RateLimiter{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module":   "ratelimit",
			"capacity": config.Capacity,
			"window":   config.Window.String(),
		}),
		capacity: config.Capacity,
		window:   config.Window,
		limit:    rate.Limit(float64(config.Capacity) / config.Window.Seconds()),
		clock:    config.Clock,
		buckets:  make(map[string]*bucket),
		stop:     make(chan struct{}),
	}
}

func (rl *RateLimiter) getBucket(key string, now time.Time) *bucket {
	rl.bucketsLock.RLock()
	b, ok := rl.buckets[key]
	rl.bucketsLock.RUnlock()
	if ok {
		return b
	}

	rl.bucketsLock.Lock()
	defer rl.bucketsLock.Unlock()
	if b, ok = rl.buckets[key]; !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.capacity), lastSeen: now}
		rl.buckets[key] = b
	}
	return b
}

// Check consumes one token for key if one is available
func (rl *RateLimiter) Check(key string) Result {
	now := rl.clock.Now()
	b := rl.getBucket(key, now)

	b.Lock()
	defer b.Unlock()

	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	if tokens < 0 {
		tokens = 0
	}

	var missing float64
	if allowed {
		missing = float64(rl.capacity) - tokens
	} else {
		missing = 1 - tokens
	}

	res := Result{
		Allowed:       allowed,
		Remaining:     int(math.Floor(tokens)),
		ResetInterval: rl.durationFor(missing),
	}

	if !allowed {
		rl.logger.WithFields(logrus.Fields{
			"method":    "Check",
			"param_key": key,
		}).Debugf("Denied. Retry in %s", res.ResetInterval)
	}

	return res
}

func (rl *RateLimiter) durationFor(tokens float64) time.Duration {
	if tokens <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(tokens / float64(rl.limit) * float64(time.Second)))
}

// Sweep evicts keys idle for longer than twice the window. A full bucket
// and a missing bucket behave the same, so eviction never changes a result.
func (rl *RateLimiter) Sweep() int {
	cutoff := rl.clock.Now().Add(-2 * rl.window)

	rl.bucketsLock.Lock()
	defer rl.bucketsLock.Unlock()

	evicted := 0
	for key, b := range rl.buckets {
		b.Lock()
		idle := b.lastSeen.Before(cutoff)
		b.Unlock()
		if idle {
			delete(rl.buckets, key)
			evicted++
		}
	}

	if evicted > 0 {
		rl.logger.WithFields(logrus.Fields{
			"method": "Sweep",
		}).Debugf("Evicted %d idle keys", evicted)
	}
	return evicted
}

// Len returns the number of tracked keys
func (rl *RateLimiter) Len() int {
	rl.bucketsLock.RLock()
	defer rl.bucketsLock.RUnlock()
	return len(rl.buckets)
}

// Start sweeps idle keys once per window until ctx is done or Stop is called
func (rl *RateLimiter) Start(ctx context.Context) {
	rl.wg.Add(1)
	go func() {
		defer rl.wg.Done()
		ticker := time.NewTicker(rl.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-rl.stop:
				return
			case <-ticker.C:
				rl.Sweep()
			}
		}
	}()
}

// Stop ends the background sweeper
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	rl.wg.Wait()
}
