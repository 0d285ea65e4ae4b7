// Package service implements passwordless sign-in by magic link and one-time
// code. Credentials live in the ephemeral store and are redeemed exactly once.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"passwordless-auth/internal/audit"
	auditdomain "passwordless-auth/internal/audit/domain"
	"passwordless-auth/internal/ephemeral"
	"passwordless-auth/internal/mail"
	"passwordless-auth/internal/ratelimit"
	rtdomain "passwordless-auth/internal/refreshtoken/domain"
	"passwordless-auth/internal/security"
	"passwordless-auth/internal/telemetry"
	tokensvc "passwordless-auth/internal/token/service"
	userdomain "passwordless-auth/internal/user/domain"
	userrepo "passwordless-auth/internal/user/repository"
)

const (
	magicLinkBytes = 32
	otpDigits      = 6

	methodMagicLink = "magic_link"
	methodOTP       = "otp"
)

// UserRepo is the user directory used by the flows.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	Update(ctx context.Context, u *userdomain.User) error
}

// TokenIssuer issues the session established by a successful verification.
type TokenIssuer interface {
	IssueTokenPair(ctx context.Context, user *userdomain.User, device rtdomain.Device) (*tokensvc.TokenPair, error)
}

// RequestResult is returned by the request operations. It is identical for
// new and existing users.
type RequestResult struct {
	Success bool
	Message string
}

// UserView is the user projection returned to clients.
type UserView struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	Role          string
	EmailVerified bool
	AvatarURL     string
}

// AuthResult is returned by a successful verification.
type AuthResult struct {
	User      UserView
	Tokens    *tokensvc.TokenPair
	IsNewUser bool
}

// magicLinkPayload is stored under auth:passwordless:<sha256(token)>.
type magicLinkPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Type   string `json:"type"`
}

// Service runs the magic link and OTP flows.
type Service struct {
	users     UserRepo
	store     ephemeral.Store
	tokens    TokenIssuer
	mailer    mail.Dispatcher
	templates mail.Templates
	limiter   *ratelimit.Limiter
	audit     audit.AuditLogger
	ttl       time.Duration
	run       telemetry.Runner
	nowF      func() time.Time
}

// NewService returns a Service. limiter and auditLogger may be nil.
func NewService(
	users UserRepo,
	store ephemeral.Store,
	tokens TokenIssuer,
	mailer mail.Dispatcher,
	templates mail.Templates,
	limiter *ratelimit.Limiter,
	auditLogger audit.AuditLogger,
	ttl time.Duration,
) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	templates.Expiry = ttl
	return &Service{
		users:     users,
		store:     store,
		tokens:    tokens,
		mailer:    mailer,
		templates: templates,
		limiter:   limiter,
		audit:     auditLogger,
		ttl:       ttl,
		run:       telemetry.Go,
		nowF:      time.Now,
	}
}

// RequestMagicLink mails a single-use sign-in link to email, creating an
// unverified account on first contact.
func (s *Service) RequestMagicLink(ctx context.Context, email string, device rtdomain.Device) (*RequestResult, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Allow(ctx, email); err != nil {
		return nil, err
	}
	user, err := s.findOrCreate(ctx, email)
	if err != nil {
		return nil, err
	}
	token, err := security.GenerateSecureToken(magicLinkBytes)
	if err != nil {
		return nil, fmt.Errorf("generate magic link: %w", err)
	}
	payload, err := json.Marshal(magicLinkPayload{UserID: user.ID, Email: email, Type: methodMagicLink})
	if err != nil {
		return nil, err
	}
	key := ephemeral.PrefixMagicLink + security.HashToken(token)
	if err := s.store.Set(ctx, key, string(payload), s.ttl); err != nil {
		return nil, fmt.Errorf("store magic link: %w", err)
	}
	msg, err := s.templates.MagicLink(email, token)
	if err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, err
	}
	if err := s.dispatch(ctx, key, msg); err != nil {
		return nil, err
	}
	s.logRequested(ctx, user, methodMagicLink, device)
	return &RequestResult{Success: true, Message: "Magic link sent to your email"}, nil
}

// VerifyMagicLink redeems token and establishes a session.
func (s *Service) VerifyMagicLink(ctx context.Context, token string, device rtdomain.Device) (*AuthResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &ValidationError{Field: "token", Message: "token is required"}
	}
	raw, ok, err := s.store.GetDel(ctx, ephemeral.PrefixMagicLink+security.HashToken(token))
	if err != nil {
		return nil, fmt.Errorf("redeem magic link: %w", err)
	}
	if !ok {
		s.logFailed(ctx, "", "Invalid or expired magic link", device)
		return nil, ErrInvalidCredential
	}
	var payload magicLinkPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || payload.UserID == "" {
		s.logFailed(ctx, "", "Malformed magic link payload", device)
		return nil, ErrInvalidCredential
	}
	user, err := s.users.GetByID(ctx, payload.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		s.logFailed(ctx, payload.Email, "User not found", device)
		return nil, ErrInvalidCredential
	}
	return s.complete(ctx, user, methodMagicLink, device)
}

// RequestOTP mails a 6-digit code to email. A new request replaces any
// outstanding code for the same address.
func (s *Service) RequestOTP(ctx context.Context, email string, device rtdomain.Device) (*RequestResult, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Allow(ctx, email); err != nil {
		return nil, err
	}
	user, err := s.findOrCreate(ctx, email)
	if err != nil {
		return nil, err
	}
	code, err := security.GenerateOTP(otpDigits)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	key := ephemeral.PrefixOTP + email
	if err := s.store.Set(ctx, key, code, s.ttl); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}
	msg, err := s.templates.OTP(email, code)
	if err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, err
	}
	if err := s.dispatch(ctx, key, msg); err != nil {
		return nil, err
	}
	s.logRequested(ctx, user, methodOTP, device)
	return &RequestResult{Success: true, Message: "OTP sent to your email"}, nil
}

// VerifyOTP checks code against the outstanding code for email and, on an
// exact match, consumes it and establishes a session. A wrong code leaves the
// outstanding code in place.
func (s *Service) VerifyOTP(ctx context.Context, email, code string, device rtdomain.Device) (*AuthResult, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if err := validateCode(code); err != nil {
		return nil, err
	}
	key := ephemeral.PrefixOTP + email
	stored, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load otp: %w", err)
	}
	if !ok || !security.TimingSafeEqual(stored, code) {
		s.logFailed(ctx, email, "Invalid OTP", device)
		return nil, ErrInvalidCredential
	}
	// Only the caller whose GETDEL returns the matched code redeems it.
	consumed, ok, err := s.store.GetDel(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("redeem otp: %w", err)
	}
	if !ok || !security.TimingSafeEqual(consumed, code) {
		s.logFailed(ctx, email, "Invalid OTP", device)
		return nil, ErrInvalidCredential
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		s.logFailed(ctx, email, "User not found", device)
		return nil, ErrInvalidCredential
	}
	return s.complete(ctx, user, methodOTP, device)
}

func (s *Service) findOrCreate(ctx context.Context, email string) (*userdomain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user != nil {
		return user, nil
	}
	now := s.nowF().UTC()
	user = &userdomain.User{
		ID:        uuid.New().String(),
		Email:     email,
		Role:      userdomain.RoleCustomer,
		Provider:  userdomain.ProviderEmail,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.users.Create(ctx, user)
	if errors.Is(err, userrepo.ErrEmailTaken) {
		// Created concurrently by another request.
		existing, gerr := s.users.GetByEmail(ctx, email)
		if gerr != nil {
			return nil, fmt.Errorf("find user: %w", gerr)
		}
		if existing == nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// dispatch sends msg; on failure the credential stored under key is removed.
func (s *Service) dispatch(ctx context.Context, key string, msg mail.Message) error {
	if err := s.mailer.Send(ctx, msg); err != nil {
		_ = s.store.Delete(ctx, key)
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	return nil
}

// complete marks the user verified, issues a token pair and records the login.
func (s *Service) complete(ctx context.Context, user *userdomain.User, method string, device rtdomain.Device) (*AuthResult, error) {
	isNewUser := !user.EmailVerified
	now := s.nowF().UTC()
	user.EmailVerified = true
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	pair, err := s.tokens.IssueTokenPair(ctx, user, device)
	if err != nil {
		return nil, err
	}

	base := audit.Event{
		UserID:       user.ID,
		ResourceType: auditdomain.ResourceUser,
		ResourceID:   user.ID,
		IP:           device.IP,
		UserAgent:    device.UserAgent,
	}
	if isNewUser {
		signup := base
		signup.Action = auditdomain.ActionUserSignup
		signup.Details = map[string]any{"method": "passwordless", "via": method}
		s.audit.LogEvent(ctx, signup)
		verified := base
		verified.Action = auditdomain.ActionEmailVerified
		verified.Details = map[string]any{"email": user.Email}
		s.audit.LogEvent(ctx, verified)
		s.sendWelcome(user.Email, user.FirstName)
	} else {
		login := base
		login.Action = auditdomain.ActionUserLogin
		login.Details = map[string]any{"method": "passwordless", "via": method}
		s.audit.LogEvent(ctx, login)
	}

	return &AuthResult{User: viewOf(user), Tokens: pair, IsNewUser: isNewUser}, nil
}

// sendWelcome mails the welcome message off the request path. Failures are logged.
func (s *Service) sendWelcome(email, firstName string) {
	s.run("welcome mail", func(ctx context.Context) error {
		msg, err := s.templates.Welcome(email, firstName)
		if err != nil {
			return err
		}
		return s.mailer.Send(ctx, msg)
	})
}

func (s *Service) logRequested(ctx context.Context, user *userdomain.User, method string, device rtdomain.Device) {
	s.audit.LogEvent(ctx, audit.Event{
		UserID:       user.ID,
		Action:       auditdomain.ActionPasswordlessRequested,
		ResourceType: auditdomain.ResourceUser,
		ResourceID:   user.ID,
		Details:      map[string]any{"email": user.Email, "method": method},
		IP:           device.IP,
		UserAgent:    device.UserAgent,
	})
}

func (s *Service) logFailed(ctx context.Context, email, reason string, device rtdomain.Device) {
	details := map[string]any{"reason": reason}
	if email != "" {
		details["email"] = email
	}
	s.audit.LogEvent(ctx, audit.Event{
		Action:       auditdomain.ActionFailedLogin,
		ResourceType: auditdomain.ResourceUser,
		Details:      details,
		IP:           device.IP,
		UserAgent:    device.UserAgent,
	})
}

func viewOf(u *userdomain.User) UserView {
	return UserView{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          string(u.Role),
		EmailVerified: u.EmailVerified,
		AvatarURL:     u.AvatarURL,
	}
}
