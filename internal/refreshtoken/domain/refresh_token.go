package domain

import "time"

// RefreshToken is one persisted refresh credential. Rows are never updated
// except to revoke them; rotation always inserts a new row whose
// ParentTokenID points at the row it replaced.
type RefreshToken struct {
	ID            string
	UserID        string
	LookupHash    string // keyed digest of the plaintext; unique index
	TokenHash     string // bcrypt digest of the plaintext
	DeviceInfo    string
	IPAddress     string
	UserAgent     string
	ExpiresAt     time.Time
	IsRevoked     bool
	RevokedAt     *time.Time // set once, when IsRevoked first becomes true
	ParentTokenID *string    // nil for tokens issued at login
	CreatedAt     time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Active reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.IsRevoked && !t.Expired(now)
}

// Device describes the client a token was issued to. All fields are optional.
type Device struct {
	IP        string
	UserAgent string
}
