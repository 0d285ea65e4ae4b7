package interceptors

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TelemetryUnary returns a unary server interceptor that counts every RPC by
// method and status code and logs failed ones. Best-effort: it never changes
// the RPC result. skipMethods is the set of full method names to ignore (e.g. health Check).
func TelemetryUnary(skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	requests, err := otel.Meter("passwordless-auth/grpc").Int64Counter(
		"auth.rpc.requests",
		metric.WithDescription("AuthService RPCs by method and status code"),
	)
	if err != nil {
		log.Printf("telemetry: rpc counter: %v", err)
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		if requests != nil {
			requests.Add(ctx, 1, metric.WithAttributes(
				attribute.String("method", info.FullMethod),
				attribute.String("code", code.String()),
			))
		}
		if code != codes.OK {
			log.Printf("grpc: %s code=%s duration_ms=%d client_ip=%s", info.FullMethod, code, time.Since(start).Milliseconds(), ClientIP(ctx))
		}
		return resp, err
	}
}
