// Package handler exposes the passwordless and token services as the gRPC AuthService.
package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pwservice "passwordless-auth/internal/passwordless/service"
	rtdomain "passwordless-auth/internal/refreshtoken/domain"
	"passwordless-auth/internal/server/interceptors"
	tokenservice "passwordless-auth/internal/token/service"
)

// Passwordless is the sign-in flow API used by AuthServer.
type Passwordless interface {
	RequestMagicLink(ctx context.Context, email string, device rtdomain.Device) (*pwservice.RequestResult, error)
	VerifyMagicLink(ctx context.Context, token string, device rtdomain.Device) (*pwservice.AuthResult, error)
	RequestOTP(ctx context.Context, email string, device rtdomain.Device) (*pwservice.RequestResult, error)
	VerifyOTP(ctx context.Context, email, code string, device rtdomain.Device) (*pwservice.AuthResult, error)
}

// Tokens is the refresh token API used by AuthServer.
type Tokens interface {
	Rotate(ctx context.Context, plaintext string, device rtdomain.Device) (*tokenservice.TokenPair, error)
	Revoke(ctx context.Context, plaintext string, device rtdomain.Device) error
	ListActive(ctx context.Context, userID string) ([]*rtdomain.RefreshToken, error)
	RevokeAll(ctx context.Context, userID string) (int64, error)
}

// AuthServer implements AuthServiceServer.
type AuthServer struct {
	passwordless Passwordless
	tokens       Tokens
}

// NewAuthServer returns a new Auth gRPC server. If a service is nil its RPCs return Unimplemented.
func NewAuthServer(passwordless Passwordless, tokens Tokens) *AuthServer {
	return &AuthServer{passwordless: passwordless, tokens: tokens}
}

var errNotConfigured = status.Error(codes.Unimplemented, "auth service not configured")

// RequestMagicLink mails a sign-in link.
func (s *AuthServer) RequestMagicLink(ctx context.Context, req *RequestMagicLinkRequest) (*RequestCredentialResponse, error) {
	if s.passwordless == nil {
		return nil, errNotConfigured
	}
	res, err := s.passwordless.RequestMagicLink(ctx, req.Email, interceptors.Device(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return &RequestCredentialResponse{Success: res.Success, Message: res.Message}, nil
}

// VerifyMagicLink redeems a sign-in link.
func (s *AuthServer) VerifyMagicLink(ctx context.Context, req *VerifyMagicLinkRequest) (*AuthResponse, error) {
	if s.passwordless == nil {
		return nil, errNotConfigured
	}
	res, err := s.passwordless.VerifyMagicLink(ctx, req.Token, interceptors.Device(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return authResponse(res), nil
}

// RequestOTP mails a one-time code.
func (s *AuthServer) RequestOTP(ctx context.Context, req *RequestOTPRequest) (*RequestCredentialResponse, error) {
	if s.passwordless == nil {
		return nil, errNotConfigured
	}
	res, err := s.passwordless.RequestOTP(ctx, req.Email, interceptors.Device(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return &RequestCredentialResponse{Success: res.Success, Message: res.Message}, nil
}

// VerifyOTP redeems a one-time code.
func (s *AuthServer) VerifyOTP(ctx context.Context, req *VerifyOTPRequest) (*AuthResponse, error) {
	if s.passwordless == nil {
		return nil, errNotConfigured
	}
	res, err := s.passwordless.VerifyOTP(ctx, req.Email, req.Code, interceptors.Device(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return authResponse(res), nil
}

// RefreshToken rotates a refresh token.
func (s *AuthServer) RefreshToken(ctx context.Context, req *RefreshTokenRequest) (*TokenResponse, error) {
	if s.tokens == nil {
		return nil, errNotConfigured
	}
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}
	pair, err := s.tokens.Rotate(ctx, req.RefreshToken, interceptors.Device(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return &TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		UserID:       pair.UserID,
	}, nil
}

// Logout revokes the presented refresh token.
func (s *AuthServer) Logout(ctx context.Context, req *LogoutRequest) (*LogoutResponse, error) {
	if s.tokens == nil {
		return nil, errNotConfigured
	}
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}
	if err := s.tokens.Revoke(ctx, req.RefreshToken, interceptors.Device(ctx)); err != nil {
		return nil, toStatus(err)
	}
	return &LogoutResponse{Success: true}, nil
}

// ListSessions returns the caller's active sessions.
func (s *AuthServer) ListSessions(ctx context.Context, _ *ListSessionsRequest) (*ListSessionsResponse, error) {
	if s.tokens == nil {
		return nil, errNotConfigured
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok || userID == "" {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	active, err := s.tokens.ListActive(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &ListSessionsResponse{Sessions: make([]Session, 0, len(active))}
	for _, t := range active {
		out.Sessions = append(out.Sessions, Session{
			ID:        t.ID,
			IPAddress: t.IPAddress,
			UserAgent: t.UserAgent,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}
	return out, nil
}

// RevokeAllSessions signs the caller out everywhere.
func (s *AuthServer) RevokeAllSessions(ctx context.Context, _ *RevokeAllSessionsRequest) (*RevokeAllSessionsResponse, error) {
	if s.tokens == nil {
		return nil, errNotConfigured
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok || userID == "" {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	n, err := s.tokens.RevokeAll(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RevokeAllSessionsResponse{Revoked: n}, nil
}

func authResponse(res *pwservice.AuthResult) *AuthResponse {
	return &AuthResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresAt:    res.Tokens.ExpiresAt,
		User: User{
			ID:            res.User.ID,
			Email:         res.User.Email,
			FirstName:     res.User.FirstName,
			LastName:      res.User.LastName,
			Role:          res.User.Role,
			EmailVerified: res.User.EmailVerified,
			AvatarURL:     res.User.AvatarURL,
		},
		IsNewUser: res.IsNewUser,
	}
}
