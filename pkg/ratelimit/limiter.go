package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultIdleTTL = 10 * time.Minute
	defaultSweep   = time.Minute
)

// Tier is a named per-minute ceiling.
type Tier struct {
	Name      string
	PerMinute int
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key and tier. Idle buckets are dropped by Run.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*entry
	idleTTL time.Duration
	sweep   time.Duration
	now     func() time.Time
}

// New builds an empty limiter. Zero durations fall back to defaults.
func New(idleTTL, sweep time.Duration) *Limiter {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	if sweep <= 0 {
		sweep = defaultSweep
	}
	return &Limiter{
		buckets: make(map[string]*entry),
		idleTTL: idleTTL,
		sweep:   sweep,
		now:     time.Now,
	}
}

// Allow consumes one token for key under tier. When the bucket is empty it
// reports how long the caller should wait.
func (l *Limiter) Allow(tier Tier, key string) (bool, time.Duration) {
	if tier.PerMinute <= 0 {
		return true, 0
	}
	now := l.now()
	bucketKey := tier.Name + "|" + key

	l.mu.Lock()
	e, ok := l.buckets[bucketKey]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(tier.PerMinute)), tier.PerMinute)}
		l.buckets[bucketKey] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	res := e.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Minute
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, delay
}

// RetryAfterSeconds rounds a wait up to whole seconds for the Retry-After header.
func RetryAfterSeconds(wait time.Duration) int {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Run sweeps idle buckets until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *Limiter) evictIdle() {
	cutoff := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.buckets {
		if e.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
