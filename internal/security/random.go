package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// ErrInvalidLength is returned when a generator is asked for a non-positive size.
var ErrInvalidLength = errors.New("invalid length")

// GenerateSecureToken returns byteLength bytes from crypto/rand, hex-encoded.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", ErrInvalidLength
	}
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var ten = big.NewInt(10)

// GenerateOTP returns a numeric code of the given number of digits. Each digit
// is sampled uniformly; leading zeros are kept.
func GenerateOTP(digits int) (string, error) {
	if digits <= 0 {
		return "", ErrInvalidLength
	}
	var sb strings.Builder
	sb.Grow(digits)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}
