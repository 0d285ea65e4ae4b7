// Package service issues access/refresh token pairs and rotates refresh tokens
// with reuse detection.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"passwordless-auth/internal/refreshtoken/domain"
	"passwordless-auth/internal/refreshtoken/repository"
	"passwordless-auth/internal/security"
	userdomain "passwordless-auth/internal/user/domain"
)

// refreshTokenBytes is the entropy of a refresh token secret.
const refreshTokenBytes = 32

// TokenPair is returned by login and rotation.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time // access token expiry
	RefreshExpiresAt time.Time
	UserID           string
}

// Issuer mints access tokens and persisted refresh tokens.
type Issuer struct {
	repo       repository.Repository
	tokens     *security.TokenProvider
	hasher     *security.Hasher
	lookupKey  []byte
	refreshTTL time.Duration
	nowF       func() time.Time
}

// NewIssuer returns an Issuer. lookupKey keys the refresh token lookup digest.
func NewIssuer(
	repo repository.Repository,
	tokens *security.TokenProvider,
	hasher *security.Hasher,
	lookupKey []byte,
	refreshTTL time.Duration,
) *Issuer {
	return &Issuer{
		repo:       repo,
		tokens:     tokens,
		hasher:     hasher,
		lookupKey:  lookupKey,
		refreshTTL: refreshTTL,
		nowF:       time.Now,
	}
}

// IssueAccessToken returns a signed access token for userID and its expiry.
func (i *Issuer) IssueAccessToken(userID, role string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id is required")
	}
	token, _, expiresAt, err := i.tokens.IssueAccess(userID, role)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue access token: %w", err)
	}
	return token, expiresAt, nil
}

// VerifyAccessToken returns the claims of a valid access token, or nil.
func (i *Issuer) VerifyAccessToken(token string) *security.AccessClaims {
	if token == "" {
		return nil
	}
	claims, err := i.tokens.ValidateAccess(token)
	if err != nil {
		return nil
	}
	return claims
}

// lookup returns the index digest for a refresh token plaintext.
func (i *Issuer) lookup(plaintext string) string {
	return security.LookupDigest(i.lookupKey, plaintext)
}

// mint generates a refresh token record without persisting it.
func (i *Issuer) mint(userID string, device domain.Device, parentID *string) (string, *domain.RefreshToken, error) {
	plaintext, err := security.GenerateSecureToken(refreshTokenBytes)
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh token: %w", err)
	}
	digest, err := i.hasher.Hash(plaintext)
	if err != nil {
		return "", nil, fmt.Errorf("hash refresh token: %w", err)
	}
	now := i.nowF().UTC()
	rec := &domain.RefreshToken{
		ID:            uuid.New().String(),
		UserID:        userID,
		LookupHash:    i.lookup(plaintext),
		TokenHash:     digest,
		DeviceInfo:    device.UserAgent,
		IPAddress:     device.IP,
		UserAgent:     device.UserAgent,
		ExpiresAt:     now.Add(i.refreshTTL),
		ParentTokenID: parentID,
		CreatedAt:     now,
	}
	return plaintext, rec, nil
}

// IssueRefreshToken creates and persists a refresh token for userID. parentID
// is nil for tokens issued at login. The plaintext is returned exactly once.
func (i *Issuer) IssueRefreshToken(ctx context.Context, userID string, device domain.Device, parentID *string) (string, *domain.RefreshToken, error) {
	if userID == "" {
		return "", nil, errors.New("user id is required")
	}
	plaintext, rec, err := i.mint(userID, device, parentID)
	if err != nil {
		return "", nil, err
	}
	if err := i.repo.Create(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("store refresh token: %w", err)
	}
	return plaintext, rec, nil
}

// IssueTokenPair issues a fresh access token and a root refresh token for user.
func (i *Issuer) IssueTokenPair(ctx context.Context, user *userdomain.User, device domain.Device) (*TokenPair, error) {
	if user == nil {
		return nil, errors.New("user is required")
	}
	access, expiresAt, err := i.IssueAccessToken(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	refresh, rec, err := i.IssueRefreshToken(ctx, user.ID, device, nil)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: rec.ExpiresAt,
		UserID:           user.ID,
	}, nil
}
