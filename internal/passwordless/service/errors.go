package service

import (
	"errors"
	"regexp"
	"strings"
)

// Sentinel errors; the gRPC handler maps them to status codes.
var (
	// ErrInvalidCredential covers unknown, expired, consumed and mismatched
	// magic links and codes alike.
	ErrInvalidCredential = errors.New("invalid or expired credential")
	// ErrDispatchFailed is returned when the sign-in mail could not be sent.
	ErrDispatchFailed = errors.New("failed to send sign-in email")
)

// ValidationError reports malformed input. It is returned before any store is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail trims and lowercases email and checks its shape.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", &ValidationError{Field: "email", Message: "email is required"}
	}
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return "", &ValidationError{Field: "email", Message: "invalid email format"}
	}
	return email, nil
}

func validateCode(code string) error {
	if len(code) != otpDigits {
		return &ValidationError{Field: "code", Message: "code must be 6 digits"}
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return &ValidationError{Field: "code", Message: "code must be 6 digits"}
		}
	}
	return nil
}
