// Package ephemeral provides the short-lived key-value store that backs
// passwordless credentials and rate-limit counters. Entries carry a TTL and
// disappear on their own; nothing here is durable.
package ephemeral

import (
	"context"
	"errors"
	"time"
)

// Key prefixes shared by all callers of the store.
const (
	PrefixMagicLink = "auth:passwordless:"
	PrefixOTP       = "auth:otp:"
	PrefixRateLimit = "ratelimit:"
)

// ErrUnavailable wraps failures of the underlying store.
var ErrUnavailable = errors.New("ephemeral store unavailable")

// Store is a TTL key-value store. A missing key is never an error.
type Store interface {
	// Set stores value under key for ttl, replacing any previous value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value under key; ok is false when missing or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// GetDel atomically returns and removes the value under key.
	// Of several concurrent callers at most one observes ok == true.
	GetDel(ctx context.Context, key string) (value string, ok bool, err error)
	// Delete removes key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
	// Increment adds one to the counter under key and returns the new count.
	// ttl is applied only when the counter is created (count == 1).
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
