package repository

import (
	"context"
	"time"

	"passwordless-auth/internal/refreshtoken/domain"
)

// Repository defines persistence for refresh tokens. Lookups return (nil, nil)
// when no row matches; errors are reserved for storage failures.
type Repository interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	GetByLookupHash(ctx context.Context, lookupHash string) (*domain.RefreshToken, error)
	GetByID(ctx context.Context, id string) (*domain.RefreshToken, error)
	// Revoke marks id revoked at at. It reports false when the token was
	// already revoked or does not exist; revoked_at is never overwritten.
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	// CountChildren returns how many tokens name id as their parent.
	CountChildren(ctx context.Context, id string) (int, error)
	// RevokeAllForUser revokes every non-revoked token of userID and returns the count.
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	// ListActiveForUser returns non-revoked, unexpired tokens, newest first.
	ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error)
	// PurgeExpired deletes tokens that expired before before.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
	// Rotate revokes oldID and inserts next in one transaction. rotated is
	// false, and nothing is written, when oldID was already revoked.
	Rotate(ctx context.Context, oldID string, next *domain.RefreshToken, at time.Time) (rotated bool, err error)
}
