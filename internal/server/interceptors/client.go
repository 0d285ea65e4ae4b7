package interceptors

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"passwordless-auth/internal/refreshtoken/domain"
)

// maxUserAgent bounds the stored user agent.
const maxUserAgent = 512

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer.
// It returns "" when no valid IP address is known.
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			s := strings.TrimSpace(vals[0])
			if i := strings.Index(s, ","); i > 0 {
				s = strings.TrimSpace(s[:i])
			}
			if ip := parseIP(s); ip != "" {
				return ip
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if ip := parseIP(strings.TrimSpace(vals[0])); ip != "" {
				return ip
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return parseIP(host)
		}
		return parseIP(p.Addr.String())
	}
	return ""
}

func parseIP(s string) string {
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}

// UserAgent returns the caller's user agent. A gateway may forward the browser's
// agent in x-user-agent, which wins over the gRPC client's own.
func UserAgent(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, key := range []string{"x-user-agent", "user-agent"} {
		if vals := md.Get(key); len(vals) > 0 {
			if ua := strings.TrimSpace(vals[0]); ua != "" {
				if len(ua) > maxUserAgent {
					ua = ua[:maxUserAgent]
				}
				return ua
			}
		}
	}
	return ""
}

// Device returns the client description recorded with issued tokens.
func Device(ctx context.Context) domain.Device {
	return domain.Device{IP: ClientIP(ctx), UserAgent: UserAgent(ctx)}
}
