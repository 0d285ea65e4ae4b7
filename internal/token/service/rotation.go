package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"passwordless-auth/internal/audit"
	auditdomain "passwordless-auth/internal/audit/domain"
	"passwordless-auth/internal/refreshtoken/domain"
	"passwordless-auth/internal/refreshtoken/repository"
	userdomain "passwordless-auth/internal/user/domain"
)

const meterName = "passwordless-auth/token"

// Rotation outcomes recorded on the auth.refresh.rotations counter.
const (
	outcomeRotated = "rotated"
	outcomeInvalid = "invalid"
	outcomeReuse   = "reuse"
	outcomeError   = "error"
)

// UserRepo is the minimal user lookup needed for rotation.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// RotationService exchanges refresh tokens for new pairs and detects reuse of
// rotated tokens.
type RotationService struct {
	issuer    *Issuer
	repo      repository.Repository
	users     UserRepo
	audit     audit.AuditLogger
	rotations metric.Int64Counter
	nowF      func() time.Time
}

// NewRotationService returns a RotationService. auditLogger may be nil.
func NewRotationService(issuer *Issuer, repo repository.Repository, users UserRepo, auditLogger audit.AuditLogger) *RotationService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	counter, err := otel.Meter(meterName).Int64Counter(
		"auth.refresh.rotations",
		metric.WithDescription("Refresh token rotation attempts by outcome"),
	)
	if err != nil {
		log.Printf("token: rotation counter: %v", err)
		counter = noop.Int64Counter{}
	}
	return &RotationService{
		issuer:    issuer,
		repo:      repo,
		users:     users,
		audit:     auditLogger,
		rotations: counter,
		nowF:      time.Now,
	}
}

// Rotate redeems a refresh token: the presented token is revoked and a child
// token is issued with a fresh access token. Presenting a token that was
// already rotated revokes every token of its user and returns
// ErrTokenReuseDetected. Other rejections match ErrInvalidRefreshToken.
func (s *RotationService) Rotate(ctx context.Context, plaintext string, device domain.Device) (*TokenPair, error) {
	pair, err := s.rotate(ctx, plaintext, device)
	outcome := outcomeRotated
	switch {
	case err == nil:
	case errors.Is(err, ErrTokenReuseDetected):
		outcome = outcomeReuse
	case errors.Is(err, ErrInvalidRefreshToken):
		outcome = outcomeInvalid
	default:
		outcome = outcomeError
	}
	s.rotations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return pair, err
}

func (s *RotationService) rotate(ctx context.Context, plaintext string, device domain.Device) (*TokenPair, error) {
	old, err := s.find(ctx, plaintext)
	if err != nil {
		return nil, err
	}
	if old.IsRevoked {
		return nil, s.revokedPresented(ctx, old, device)
	}
	now := s.nowF().UTC()
	if old.Expired(now) {
		return nil, invalid(ReasonExpired)
	}
	user, err := s.users.GetByID(ctx, old.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, invalid(ReasonNoUser)
	}

	access, accessExp, err := s.issuer.IssueAccessToken(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	parentID := old.ID
	refresh, next, err := s.issuer.mint(user.ID, device, &parentID)
	if err != nil {
		return nil, err
	}
	rotated, err := s.repo.Rotate(ctx, old.ID, next, now)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		// Lost a race with a concurrent rotation of the same token.
		current, err := s.repo.GetByID(ctx, old.ID)
		if err != nil {
			return nil, fmt.Errorf("reload refresh token: %w", err)
		}
		if current == nil {
			return nil, invalid(ReasonNotFound)
		}
		return nil, s.revokedPresented(ctx, current, device)
	}

	s.audit.LogEvent(ctx, audit.Event{
		UserID:       user.ID,
		Action:       auditdomain.ActionTokenRefreshed,
		ResourceType: auditdomain.ResourceRefreshToken,
		ResourceID:   next.ID,
		Details:      map[string]any{"parentTokenId": old.ID},
		IP:           device.IP,
		UserAgent:    device.UserAgent,
	})
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresAt:        accessExp,
		RefreshExpiresAt: next.ExpiresAt,
		UserID:           user.ID,
	}, nil
}

// find locates the token by lookup digest and checks its bcrypt digest.
func (s *RotationService) find(ctx context.Context, plaintext string) (*domain.RefreshToken, error) {
	if plaintext == "" {
		return nil, invalid(ReasonMissing)
	}
	tok, err := s.repo.GetByLookupHash(ctx, s.issuer.lookup(plaintext))
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if tok == nil {
		return nil, invalid(ReasonNotFound)
	}
	ok, err := s.issuer.hasher.Verify(tok.TokenHash, plaintext)
	if err != nil {
		return nil, fmt.Errorf("verify refresh token: %w", err)
	}
	if !ok {
		return nil, invalid(ReasonMismatch)
	}
	return tok, nil
}

// revokedPresented handles a revoked token. A token with a successor was
// rotated before, so presenting it again means the secret leaked.
func (s *RotationService) revokedPresented(ctx context.Context, tok *domain.RefreshToken, device domain.Device) error {
	children, err := s.repo.CountChildren(ctx, tok.ID)
	if err != nil {
		return fmt.Errorf("count child tokens: %w", err)
	}
	if children == 0 {
		return invalid(ReasonRevoked)
	}
	n, err := s.repo.RevokeAllForUser(ctx, tok.UserID, s.nowF().UTC())
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	s.audit.LogEvent(ctx, audit.Event{
		UserID:       tok.UserID,
		Action:       auditdomain.ActionTokenReuseDetected,
		ResourceType: auditdomain.ResourceRefreshToken,
		ResourceID:   tok.ID,
		Severity:     auditdomain.SeverityHigh,
		Details:      map[string]any{"revokedCount": n},
		IP:           device.IP,
		UserAgent:    device.UserAgent,
	})
	return ErrTokenReuseDetected
}

// Revoke revokes the presented refresh token (logout). Revoking an already
// revoked token succeeds; an unknown token is ErrInvalidRefreshToken.
func (s *RotationService) Revoke(ctx context.Context, plaintext string, device domain.Device) error {
	tok, err := s.find(ctx, plaintext)
	if err != nil {
		return err
	}
	if tok.IsRevoked {
		return nil
	}
	if _, err := s.repo.Revoke(ctx, tok.ID, s.nowF().UTC()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	s.audit.LogEvent(ctx, audit.Event{
		UserID:       tok.UserID,
		Action:       auditdomain.ActionUserLogout,
		ResourceType: auditdomain.ResourceRefreshToken,
		ResourceID:   tok.ID,
		IP:           device.IP,
		UserAgent:    device.UserAgent,
	})
	return nil
}

// RevokeAll revokes every active token of userID and returns how many were revoked.
func (s *RotationService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, errors.New("user id is required")
	}
	n, err := s.repo.RevokeAllForUser(ctx, userID, s.nowF().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	s.audit.LogEvent(ctx, audit.Event{
		UserID:       userID,
		Action:       auditdomain.ActionSessionsRevoked,
		ResourceType: auditdomain.ResourceUser,
		ResourceID:   userID,
		Details:      map[string]any{"revokedCount": n},
	})
	return n, nil
}

// ListActive returns the user's unrevoked, unexpired tokens, newest first.
func (s *RotationService) ListActive(ctx context.Context, userID string) ([]*domain.RefreshToken, error) {
	return s.repo.ListActiveForUser(ctx, userID, s.nowF().UTC())
}

// PurgeExpired deletes tokens that have expired and returns the count.
func (s *RotationService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpired(ctx, s.nowF().UTC())
}
