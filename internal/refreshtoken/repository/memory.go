package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"passwordless-auth/internal/refreshtoken/domain"
)

// ErrDuplicateLookupHash mirrors the unique index on lookup_hash.
var ErrDuplicateLookupHash = errors.New("refresh token lookup hash already exists")

// MemoryRepository is an in-process Repository with the same revocation and
// rotation semantics as PostgresRepository. Used in tests and local runs
// without a database.
type MemoryRepository struct {
	mu       sync.Mutex
	byID     map[string]*domain.RefreshToken
	byLookup map[string]string
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:     make(map[string]*domain.RefreshToken),
		byLookup: make(map[string]string),
	}
}

func clone(t *domain.RefreshToken) *domain.RefreshToken {
	c := *t
	if t.RevokedAt != nil {
		ts := *t.RevokedAt
		c.RevokedAt = &ts
	}
	if t.ParentTokenID != nil {
		p := *t.ParentTokenID
		c.ParentTokenID = &p
	}
	return &c
}

func (r *MemoryRepository) insertLocked(t *domain.RefreshToken) error {
	if _, ok := r.byLookup[t.LookupHash]; ok {
		return ErrDuplicateLookupHash
	}
	c := clone(t)
	c.IsRevoked = false
	c.RevokedAt = nil
	r.byID[c.ID] = c
	r.byLookup[c.LookupHash] = c.ID
	return nil
}

func (r *MemoryRepository) revokeLocked(id string, at time.Time) bool {
	t, ok := r.byID[id]
	if !ok || t.IsRevoked {
		return false
	}
	t.IsRevoked = true
	ts := at
	t.RevokedAt = &ts
	return true
}

func (r *MemoryRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(t)
}

func (r *MemoryRepository) GetByLookupHash(ctx context.Context, lookupHash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byLookup[lookupHash]
	if !ok {
		return nil, nil
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return clone(t), nil
}

func (r *MemoryRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revokeLocked(id, at), nil
}

func (r *MemoryRepository) CountChildren(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.byID {
		if t.ParentTokenID != nil && *t.ParentTokenID == id {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.byID {
		if t.UserID == userID && r.revokeLocked(id, at) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.RefreshToken
	for _, t := range r.byID {
		if t.UserID == userID && t.Active(now) {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.byID {
		if t.ExpiresAt.Before(before) {
			delete(r.byLookup, t.LookupHash)
			delete(r.byID, id)
			n++
		}
	}
	for _, t := range r.byID {
		if t.ParentTokenID != nil {
			if _, ok := r.byID[*t.ParentTokenID]; !ok {
				t.ParentTokenID = nil
			}
		}
	}
	return n, nil
}

func (r *MemoryRepository) Rotate(ctx context.Context, oldID string, next *domain.RefreshToken, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byLookup[next.LookupHash]; ok {
		return false, ErrDuplicateLookupHash
	}
	if !r.revokeLocked(oldID, at) {
		return false, nil
	}
	if err := r.insertLocked(next); err != nil {
		return false, err
	}
	return true, nil
}
