// Package telemetry forwards audit events to secondary sinks (Kafka, OTel logs)
// and runs best-effort background work off the request path.
package telemetry

import (
	"context"

	"passwordless-auth/internal/audit/domain"
)

// EventEmitter emits audit events to an external sink. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.AuditLog) error
}

// MultiEmitter fans one event out to several emitters. Every emitter is tried;
// the first error is returned.
type MultiEmitter []EventEmitter

func (m MultiEmitter) Emit(ctx context.Context, event *domain.AuditLog) error {
	var first error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
