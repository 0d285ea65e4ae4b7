package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"passwordless-auth/internal/audit/domain"
	"passwordless-auth/internal/telemetry"
)

// recordEmitter is the subset of otellog.Logger used by the adapter.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends audit events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("passwordless-auth.audit")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.AuditLog) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the audit event to an OTel log record. HIGH severity events are emitted at WARN.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.AuditLog) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetEventName(event.Action)
	if event.Severity == domain.SeverityHigh {
		rec.SetSeverity(otellog.SeverityWarn)
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
	}
	rec.SetSeverityText(event.Severity)
	if len(event.Details) > 0 {
		if b, err := json.Marshal(event.Details); err == nil {
			rec.SetBody(otellog.BytesValue(b))
		}
	}
	attrs := []otellog.KeyValue{otellog.String("action", event.Action)}
	for k, v := range map[string]string{
		"user_id":       event.UserID,
		"resource_type": event.ResourceType,
		"resource_id":   event.ResourceID,
		"client_ip":     event.IP,
		"user_agent":    event.UserAgent,
	} {
		if v != "" {
			attrs = append(attrs, otellog.String(k, v))
		}
	}
	rec.AddAttributes(attrs...)
	e.logger.Emit(ctx, rec)
	return nil
}
