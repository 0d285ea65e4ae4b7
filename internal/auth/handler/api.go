package handler

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"passwordless-auth/internal/server/codec"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "auth.v1.AuthService"

// Full method names, used for the public-method set of the auth interceptor.
const (
	MethodRequestMagicLink  = "/" + ServiceName + "/RequestMagicLink"
	MethodVerifyMagicLink   = "/" + ServiceName + "/VerifyMagicLink"
	MethodRequestOTP        = "/" + ServiceName + "/RequestOTP"
	MethodVerifyOTP         = "/" + ServiceName + "/VerifyOTP"
	MethodRefreshToken      = "/" + ServiceName + "/RefreshToken"
	MethodLogout            = "/" + ServiceName + "/Logout"
	MethodListSessions      = "/" + ServiceName + "/ListSessions"
	MethodRevokeAllSessions = "/" + ServiceName + "/RevokeAllSessions"
)

// PublicMethods do not require an access token.
var PublicMethods = map[string]bool{
	MethodRequestMagicLink: true,
	MethodVerifyMagicLink:  true,
	MethodRequestOTP:       true,
	MethodVerifyOTP:        true,
	MethodRefreshToken:     true,
	MethodLogout:           true,
}

type RequestMagicLinkRequest struct {
	Email string `json:"email"`
}

type VerifyMagicLinkRequest struct {
	Token string `json:"token"`
}

type RequestOTPRequest struct {
	Email string `json:"email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// RequestCredentialResponse is returned for both magic link and OTP requests.
type RequestCredentialResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"emailVerified"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
}

// AuthResponse is returned by a successful magic link or OTP verification.
type AuthResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         User      `json:"user"`
	IsNewUser    bool      `json:"isNewUser"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UserID       string    `json:"userId"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutResponse struct {
	Success bool `json:"success"`
}

type ListSessionsRequest struct{}

// Session is one active refresh token, without any secret material.
type Session struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type RevokeAllSessionsRequest struct{}

type RevokeAllSessionsResponse struct {
	Revoked int64 `json:"revoked"`
}

// AuthServiceServer is the server API for AuthService.
type AuthServiceServer interface {
	RequestMagicLink(context.Context, *RequestMagicLinkRequest) (*RequestCredentialResponse, error)
	VerifyMagicLink(context.Context, *VerifyMagicLinkRequest) (*AuthResponse, error)
	RequestOTP(context.Context, *RequestOTPRequest) (*RequestCredentialResponse, error)
	VerifyOTP(context.Context, *VerifyOTPRequest) (*AuthResponse, error)
	RefreshToken(context.Context, *RefreshTokenRequest) (*TokenResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
	RevokeAllSessions(context.Context, *RevokeAllSessionsRequest) (*RevokeAllSessionsResponse, error)
}

// unary adapts a typed server method to a grpc.MethodHandler.
func unary[Req any, Resp any](fullMethod string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes AuthService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestMagicLink", Handler: unary(MethodRequestMagicLink, AuthServiceServer.RequestMagicLink)},
		{MethodName: "VerifyMagicLink", Handler: unary(MethodVerifyMagicLink, AuthServiceServer.VerifyMagicLink)},
		{MethodName: "RequestOTP", Handler: unary(MethodRequestOTP, AuthServiceServer.RequestOTP)},
		{MethodName: "VerifyOTP", Handler: unary(MethodVerifyOTP, AuthServiceServer.VerifyOTP)},
		{MethodName: "RefreshToken", Handler: unary(MethodRefreshToken, AuthServiceServer.RefreshToken)},
		{MethodName: "Logout", Handler: unary(MethodLogout, AuthServiceServer.Logout)},
		{MethodName: "ListSessions", Handler: unary(MethodListSessions, AuthServiceServer.ListSessions)},
		{MethodName: "RevokeAllSessions", Handler: unary(MethodRevokeAllSessions, AuthServiceServer.RevokeAllSessions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auth/v1/auth.json",
}

// RegisterAuthServiceServer registers srv with s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// AuthServiceClient calls AuthService over the JSON codec.
type AuthServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAuthServiceClient returns a client on cc.
func NewAuthServiceClient(cc grpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthServiceClient) RequestMagicLink(ctx context.Context, in *RequestMagicLinkRequest, opts ...grpc.CallOption) (*RequestCredentialResponse, error) {
	return invoke[RequestCredentialResponse](ctx, c.cc, MethodRequestMagicLink, in, opts)
}

func (c *AuthServiceClient) VerifyMagicLink(ctx context.Context, in *VerifyMagicLinkRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, MethodVerifyMagicLink, in, opts)
}

func (c *AuthServiceClient) RequestOTP(ctx context.Context, in *RequestOTPRequest, opts ...grpc.CallOption) (*RequestCredentialResponse, error) {
	return invoke[RequestCredentialResponse](ctx, c.cc, MethodRequestOTP, in, opts)
}

func (c *AuthServiceClient) VerifyOTP(ctx context.Context, in *VerifyOTPRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, MethodVerifyOTP, in, opts)
}

func (c *AuthServiceClient) RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*TokenResponse, error) {
	return invoke[TokenResponse](ctx, c.cc, MethodRefreshToken, in, opts)
}

func (c *AuthServiceClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, MethodLogout, in, opts)
}

func (c *AuthServiceClient) ListSessions(ctx context.Context, in *ListSessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c.cc, MethodListSessions, in, opts)
}

func (c *AuthServiceClient) RevokeAllSessions(ctx context.Context, in *RevokeAllSessionsRequest, opts ...grpc.CallOption) (*RevokeAllSessionsResponse, error) {
	return invoke[RevokeAllSessionsResponse](ctx, c.cc, MethodRevokeAllSessions, in, opts)
}
