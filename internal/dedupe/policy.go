// Package dedupe decides whether a candidate alert should be emitted or
// suppressed as a near-duplicate of one already sent. It is consulted by
// producers before broadcasting, never by the hub itself.
package dedupe

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Suppression reasons reported in a Decision.
const (
	ReasonFirstSeen  = "first_seen"
	ReasonCooldown   = "cooldown"
	ReasonMaxRetries = "max_retries"
	ReasonNewAlert   = "new_alert"
	ReasonReemitted  = "reemitted"
)

// Candidate is one alert proposed for emission.
type Candidate struct {
	Type        string
	SourceID    string
	Subtype     string
	PeopleCount int
	At          time.Time // zero means now
}

// Decision is the policy verdict for a candidate.
type Decision struct {
	Emit   bool
	Reason string

	// RetryAfter is the remaining cooldown when Reason is cooldown.
	RetryAfter time.Duration
}

// entry is the tracked history for one deduplication key. lastSeenAt is
// refreshed by every similar candidate and anchors the similarity window;
// lastSentAt moves only on emission and anchors the cooldown.
type entry struct {
	lastSentAt time.Time
	lastSeenAt time.Time
	lastCount  int
	subtype    string
	retryCount int
}

// Config tunes the similarity window and back-off schedule.
type Config struct {
	// Window is the time span within which alerts for the same key are
	// considered candidates for suppression. Also the base cooldown unit.
	Window time.Duration

	// MaxRetries caps permitted re-emissions per key within the window.
	MaxRetries int

	// CountTolerance is the relative people-count difference under which
	// two alerts are considered the same magnitude (0.20 = 20%).
	CountTolerance float64
}

// Policy holds per-key emission history behind a mutex. A background sweep
// purges entries older than twice the window to bound memory; call Stop to
// halt it.
type Policy struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry

	stopOnce  sync.Once
	stopSweep chan struct{}
	sweepDone chan struct{}
}

// New creates a policy and starts its sweep loop.
func New(cfg Config, logger *slog.Logger) *Policy {
	p := &Policy{
		cfg:       cfg,
		logger:    logger,
		entries:   make(map[string]*entry),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

// Decide evaluates a candidate against the key's history and records the
// outcome. Check and update are atomic under one lock acquisition.
func (p *Policy) Decide(c Candidate) Decision {
	now := c.At
	if now.IsZero() {
		now = time.Now()
	}
	key := p.key(c)

	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok {
		p.entries[key] = &entry{lastSentAt: now, lastSeenAt: now, lastCount: c.PeopleCount, subtype: c.Subtype}
		return Decision{Emit: true, Reason: ReasonFirstSeen}
	}

	if !p.similar(e, c, now) {
		// Different magnitude or expired window: treat as a new alert.
		e.lastSentAt = now
		e.lastSeenAt = now
		e.lastCount = c.PeopleCount
		e.subtype = c.Subtype
		e.retryCount = 0
		return Decision{Emit: true, Reason: ReasonNewAlert}
	}
	e.lastSeenAt = now

	if e.retryCount >= p.cfg.MaxRetries {
		return Decision{Emit: false, Reason: ReasonMaxRetries}
	}

	// Linear back-off: each permitted re-emission stretches the cooldown.
	cooldown := p.cfg.Window * time.Duration(e.retryCount+1)
	if elapsed := now.Sub(e.lastSentAt); elapsed < cooldown {
		return Decision{Emit: false, Reason: ReasonCooldown, RetryAfter: cooldown - elapsed}
	}

	e.retryCount++
	e.lastSentAt = now
	e.lastCount = c.PeopleCount
	return Decision{Emit: true, Reason: ReasonReemitted}
}

func (p *Policy) key(c Candidate) string {
	return fmt.Sprintf("%s:%s:%s", c.Type, c.SourceID, c.Subtype)
}

// similar reports whether the candidate matches the tracked entry closely
// enough to be the same underlying condition. The key already pins type,
// source, and subtype; this checks the window and people-count magnitude.
func (p *Policy) similar(e *entry, c Candidate, now time.Time) bool {
	if now.Sub(e.lastSeenAt) > p.cfg.Window {
		return false
	}
	if e.lastCount > 0 && c.PeopleCount > 0 {
		diff := math.Abs(float64(c.PeopleCount-e.lastCount)) / float64(e.lastCount)
		if diff > p.cfg.CountTolerance {
			return false
		}
	}
	return true
}

// Stop halts the sweep goroutine and waits for it to exit. Safe to call
// more than once.
func (p *Policy) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopSweep)
		<-p.sweepDone
	})
}

func (p *Policy) sweepLoop() {
	defer close(p.sweepDone)

	ticker := time.NewTicker(p.cfg.Window)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopSweep:
			return
		case <-ticker.C:
			p.sweep(time.Now())
		}
	}
}

// sweep removes entries whose last emission is older than twice the window.
func (p *Policy) sweep(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	expired := 0
	cutoff := now.Add(-2 * p.cfg.Window)
	for key, e := range p.entries {
		if e.lastSentAt.Before(cutoff) {
			delete(p.entries, key)
			expired++
		}
	}
	if expired > 0 {
		p.logger.Debug("swept expired dedupe entries", "expired", expired, "remaining", len(p.entries))
	}
}
