package domain

import (
	"errors"
	"time"
)

// User is an account in the user directory.
type User struct {
	ID            string
	Email         string // normalized: trimmed, lowercase
	FirstName     string
	LastName      string
	Role          Role
	EmailVerified bool
	LastLoginAt   *time.Time
	AvatarURL     string
	Provider      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// ProviderEmail marks accounts created through passwordless email sign-in.
const ProviderEmail = "email"

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	if u.Role != RoleCustomer && u.Role != RoleAdmin {
		return errors.New("role must be CUSTOMER or ADMIN")
	}
	if u.Provider == "" {
		u.Provider = ProviderEmail
	}
	return nil
}

// DisplayName returns the first name, or the email when no name is known.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}
