package service

import "errors"

// Sentinel errors; the gRPC handler maps them to status codes.
var (
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrTokenReuseDetected  = errors.New("refresh token reuse detected; all sessions revoked")
)

// Reasons carried by InvalidTokenError. They are audited, never shown to callers.
const (
	ReasonMissing  = "missing"
	ReasonNotFound = "not_found"
	ReasonMismatch = "hash_mismatch"
	ReasonExpired  = "expired"
	ReasonRevoked  = "revoked"
	ReasonNoUser   = "user_not_found"
)

// InvalidTokenError is a rejected refresh token. It matches ErrInvalidRefreshToken
// under errors.Is and reads the same to callers whatever the Reason.
type InvalidTokenError struct {
	Reason string
}

func (e *InvalidTokenError) Error() string { return ErrInvalidRefreshToken.Error() }

func (e *InvalidTokenError) Is(target error) bool { return target == ErrInvalidRefreshToken }

func invalid(reason string) error { return &InvalidTokenError{Reason: reason} }

// InvalidReason returns the reason of an InvalidTokenError in err's chain, or "".
func InvalidReason(err error) string {
	var ite *InvalidTokenError
	if errors.As(err, &ite) {
		return ite.Reason
	}
	return ""
}
