// Package producer publishes audit events to a message broker (Kafka).
package producer

import (
	"context"

	"passwordless-auth/internal/audit/domain"
)

// Producer emits audit events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single audit event. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, event *domain.AuditLog) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
