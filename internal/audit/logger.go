// Package audit records security-relevant authentication events. Recording is
// best-effort: a failing sink is logged and never fails the caller.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"passwordless-auth/internal/audit/domain"
	auditrepo "passwordless-auth/internal/audit/repository"
	"passwordless-auth/internal/telemetry"
)

// Event is one audit record as supplied by callers; Logger fills in ID and time.
type Event struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Severity     string // defaults to INFO
	Details      map[string]any
	IP           string
	UserAgent    string
}

// AuditLogger records audit events. LogEvent never fails the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, e Event)
}

// Logger persists events to the audit repository and forwards them to an optional emitter (Kafka, OTel logs).
type Logger struct {
	repo    auditrepo.Repository
	emitter telemetry.EventEmitter
	nowF    func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and forwards to emitter.
// Either may be nil.
func NewLogger(repo auditrepo.Repository, emitter telemetry.EventEmitter) *Logger {
	return &Logger{repo: repo, emitter: emitter, nowF: time.Now}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
// The repository write is synchronous; emitter delivery happens in the background.
func (l *Logger) LogEvent(ctx context.Context, e Event) {
	if e.Severity == "" {
		e.Severity = domain.SeverityInfo
	}
	entry := &domain.AuditLog{
		ID:           uuid.New().String(),
		UserID:       e.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Severity:     e.Severity,
		Details:      e.Details,
		IP:           e.IP,
		UserAgent:    e.UserAgent,
		CreatedAt:    l.nowF().UTC(),
	}
	if e.Severity == domain.SeverityHigh {
		log.Printf("audit: SECURITY %s user=%s resource=%s/%s", e.Action, e.UserID, e.ResourceType, e.ResourceID)
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			log.Printf("audit: failed to log event %s/%s: %v", e.Action, e.ResourceType, err)
		}
	}
	telemetry.EmitAsync(l.emitter, entry)
}

// Nop discards every event.
type Nop struct{}

func (Nop) LogEvent(context.Context, Event) {}
