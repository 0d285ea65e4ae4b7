package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	authhandler "passwordless-auth/internal/auth/handler"
	healthhandler "passwordless-auth/internal/health/handler"
	"passwordless-auth/internal/server/interceptors"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// Deps holds service dependencies for gRPC handlers.
type Deps struct {
	// Passwordless serves the magic link and OTP RPCs. If nil, they return Unimplemented.
	Passwordless authhandler.Passwordless
	// Tokens serves refresh, logout and session RPCs. If nil, they return Unimplemented.
	Tokens authhandler.Tokens
	// Verifier validates Bearer access tokens for protected RPCs. Required.
	Verifier interceptors.AccessVerifier
	// HealthPingers are checked by grpc.health.v1.Health/Check (e.g. postgres, redis).
	HealthPingers map[string]healthhandler.Pinger
}

// NewServer returns a gRPC server with tracing, metrics, auth and telemetry
// interceptors and all services registered.
func NewServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	public := map[string]bool{healthCheckMethod: true}
	for m := range authhandler.PublicMethods {
		public[m] = true
	}
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.TelemetryUnary(map[string]bool{healthCheckMethod: true}),
			interceptors.AuthUnary(deps.Verifier, public),
		),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - auth.v1.AuthService → internal/auth/handler
//   - grpc.health.v1.Health → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	authhandler.RegisterAuthServiceServer(s, authhandler.NewAuthServer(deps.Passwordless, deps.Tokens))
	healthpb.RegisterHealthServer(s, healthhandler.NewServer([]string{authhandler.ServiceName}, deps.HealthPingers))
}
