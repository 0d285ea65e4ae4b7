package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken returns the hex-encoded SHA-256 of a single-use token. Magic link
// tokens are stored only under this digest.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// LookupDigest returns a deterministic HMAC-SHA256 of token keyed by key,
// hex-encoded. It indexes refresh tokens; the bcrypt digest is still checked
// after the row is found.
func LookupDigest(key []byte, token string) string {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(token))
	return hex.EncodeToString(m.Sum(nil))
}

// TimingSafeEqual compares a and b in constant time. Strings of different
// length, or two empty strings, never match.
func TimingSafeEqual(a, b string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
