package domain

import "time"

// Action names recorded in audit_logs.action.
const (
	ActionUserSignup            = "user_signup"
	ActionUserLogin             = "user_login"
	ActionUserLogout            = "user_logout"
	ActionFailedLogin           = "failed_login"
	ActionTokenRefreshed        = "token_refreshed"
	ActionTokenReuseDetected    = "token_reuse_detected"
	ActionSessionsRevoked       = "sessions_revoked"
	ActionPasswordlessRequested = "passwordless_requested"
	ActionEmailVerified         = "email_verified"
)

// Resource types recorded in audit_logs.resource_type.
const (
	ResourceUser         = "user"
	ResourceRefreshToken = "refresh_token"
)

// Severity levels. Reuse detection is the only HIGH event.
const (
	SeverityInfo = "INFO"
	SeverityHigh = "HIGH"
)

// AuditLog represents an audit event.
type AuditLog struct {
	ID           string
	UserID       string // empty for events with no known user (e.g. failed_login)
	Action       string
	ResourceType string
	ResourceID   string
	Severity     string
	Details      map[string]any
	IP           string
	UserAgent    string
	CreatedAt    time.Time
}
