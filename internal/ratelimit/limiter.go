// Package ratelimit throttles requests with fixed-window counters in the ephemeral store.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"passwordless-auth/internal/ephemeral"
)

// ErrRateLimited is returned when a key has exhausted its window.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter allows Limit hits per key per Window. A zero Limit disables limiting.
type Limiter struct {
	store  ephemeral.Store
	scope  string
	limit  int
	window time.Duration
}

// New returns a limiter whose keys are "ratelimit:<scope>:<subject>".
func New(store ephemeral.Store, scope string, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, scope: scope, limit: limit, window: window}
}

// Key returns the counter key for subject.
func (l *Limiter) Key(subject string) string {
	return ephemeral.PrefixRateLimit + l.scope + ":" + subject
}

// Allow records one hit for subject and returns ErrRateLimited once the count exceeds the limit.
func (l *Limiter) Allow(ctx context.Context, subject string) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	n, err := l.store.Increment(ctx, l.Key(subject), l.window)
	if err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if n > int64(l.limit) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter for subject.
func (l *Limiter) Reset(ctx context.Context, subject string) error {
	if l == nil {
		return nil
	}
	return l.store.Delete(ctx, l.Key(subject))
}
