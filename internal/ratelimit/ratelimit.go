// Package ratelimit bounds how fast webhook producers can push alerts.
//
// The shipped implementation is an in-memory token bucket keyed by caller.
// The Limiter interface is the contract so a shared store can replace it
// when the intake tier runs on more than one instance.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should proceed.
// Implementations must be safe for concurrent use. Errors signal a limiter
// malfunction; callers treat them as fail-open rather than blocking intake.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
