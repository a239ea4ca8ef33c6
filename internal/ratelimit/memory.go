package ratelimit

import (
	"context"
	"sync"
	"time"
)

// bucket tracks the remaining tokens for one producer key.
type bucket struct {
	tokens   float64
	refilled time.Time
}

// MemoryLimiter is a per-key in-process token bucket. Each key refills at
// the configured sustained rate up to the burst capacity. A background
// goroutine evicts idle keys so a churn of one-shot producers cannot grow
// the map without bound.
type MemoryLimiter struct {
	rate  float64 // tokens per second
	burst float64 // bucket capacity

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryLimiter creates a token bucket limiter with the given sustained
// rate (requests per second per key) and burst capacity. Call Close to stop
// the eviction goroutine.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go m.evictLoop()
	return m
}

// Allow consumes one token from the bucket for key. False means the caller
// is over its rate and the request should be rejected.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	b, ok := m.buckets[key]
	if !ok {
		m.buckets[key] = &bucket{tokens: m.burst - 1, refilled: now}
		return true, nil
	}

	b.tokens += now.Sub(b.refilled).Seconds() * m.rate
	if b.tokens > m.burst {
		b.tokens = m.burst
	}
	b.refilled = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Close stops the eviction goroutine. Safe to call multiple times.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

const idleEviction = 10 * time.Minute

func (m *MemoryLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle(time.Now())
		}
	}
}

func (m *MemoryLimiter) evictIdle(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-idleEviction)
	for key, b := range m.buckets {
		if b.refilled.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
