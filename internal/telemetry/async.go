package telemetry

import (
	"context"
	"log"
	"time"

	"passwordless-auth/internal/audit/domain"
)

// emitTimeout is the max time allowed for a single async task. Used by EmitAsync, Go and ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after gRPC GracefulStop before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// Runner runs fn off the caller's path. Tests substitute a synchronous runner.
type Runner func(name string, fn func(context.Context) error)

// Go runs fn in a goroutine with a fresh context bounded by emitTimeout, so
// request cancellation does not abort it. Errors are logged with name.
func Go(name string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("%s: async task failed: %v", name, err)
		}
	}()
}

// Inline runs fn on the calling goroutine. Errors are logged, never returned.
func Inline(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Printf("%s: task failed: %v", name, err)
	}
}

// EmitAsync sends event through emitter without blocking the caller.
// emitter and event may be nil; EmitAsync then returns immediately without starting a goroutine.
func EmitAsync(emitter EventEmitter, event *domain.AuditLog) {
	if emitter == nil || event == nil {
		return
	}
	Go("telemetry", func(ctx context.Context) error {
		return emitter.Emit(ctx, event)
	})
}
