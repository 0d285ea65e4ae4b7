// Package handler implements the standard gRPC health service with readiness
// checks against the service's backing stores.
package handler

import (
	"context"
	"log"
	"sort"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const pingTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a func to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Server implements grpc.health.v1.Health. Check is SERVING only when every
// pinger succeeds.
type Server struct {
	healthpb.UnimplementedHealthServer
	services map[string]bool
	pingers  map[string]Pinger
	names    []string
}

// NewServer returns a health server. services lists the service names Check
// answers for besides the overall "" service; pingers are keyed by dependency name.
func NewServer(services []string, pingers map[string]Pinger) *Server {
	s := &Server{services: map[string]bool{"": true}, pingers: pingers}
	for _, name := range services {
		s.services[name] = true
	}
	for name, p := range pingers {
		if p != nil {
			s.names = append(s.names, name)
		}
	}
	sort.Strings(s.names)
	return s
}

// Check returns service health status for Kubernetes, load balancers, and CI.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if !s.services[req.GetService()] {
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	for _, name := range s.names {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := s.pingers[name].PingContext(pctx)
		cancel()
		if err != nil {
			log.Printf("health: %s unreachable: %v", name, err)
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
