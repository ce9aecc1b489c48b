package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrDuplicateEmail is returned when registering an email that already belongs to a user.
	ErrDuplicateEmail = errors.New("user with this email already exists")
	// ErrUserNotFound is returned when no user is registered under the given email.
	ErrUserNotFound = errors.New("no account found with this email")
	// ErrInvalidCredentials is returned when the password does not match the stored credential.
	ErrInvalidCredentials = errors.New("invalid password")
	// ErrNameRequired is returned when registering without a display name.
	ErrNameRequired = errors.New("name is required")
	// ErrInvalidEmail is returned when an email address is malformed.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrPasswordTooShort is returned when a password is shorter than MinPasswordLength.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrNotAuthenticated is returned by operations that need an active session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrCompanyNameRequired is returned when the setup step omits the company name.
	ErrCompanyNameRequired = errors.New("company name is required")
	// ErrCompanySizeRequired is returned when the setup step omits the company size.
	ErrCompanySizeRequired = errors.New("company size is required")
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// Record schema versions.
const (
	// SchemaVersionLegacy marks records carrying a plaintext password.
	SchemaVersionLegacy = 1
	// SchemaVersionCurrent marks records carrying an Argon2id password hash.
	SchemaVersionCurrent = 2
)

// User is a registered account.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"passwordHash,omitempty"`
	CompanyName    string    `json:"companyName,omitempty"`
	CompanyWebsite string    `json:"companyWebsite,omitempty"`
	CompanySize    string    `json:"companySize,omitempty"`
	Plan           string    `json:"plan,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	SchemaVersion  int       `json:"schemaVersion,omitempty"`

	// LegacyPassword holds the plaintext credential of records written before
	// password hashing. It is cleared once the record is upgraded.
	LegacyPassword string `json:"password,omitempty"`
}

// IsLegacy reports whether the record still stores a plaintext password.
func (u *User) IsLegacy() bool {
	return u.SchemaVersion < SchemaVersionCurrent && u.PasswordHash == ""
}

// Session returns the session projection of the user. It never carries a credential.
func (u *User) Session() SessionUser {
	return SessionUser{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		CompanyName: u.CompanyName,
		Plan:        u.Plan,
	}
}

// View returns the public representation of the user.
func (u *User) View() UserView {
	return UserView{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		CompanyName:    u.CompanyName,
		CompanyWebsite: u.CompanyWebsite,
		CompanySize:    u.CompanySize,
		Plan:           u.Plan,
		CreatedAt:      u.CreatedAt,
	}
}

// UserView is a user without credentials, safe to hand out to clients.
type UserView struct {
	ID             string    `json:"id"             yaml:"id"`
	Name           string    `json:"name"           yaml:"name"`
	Email          string    `json:"email"          yaml:"email"`
	CompanyName    string    `json:"companyName,omitempty"    yaml:"companyName,omitempty"`
	CompanyWebsite string    `json:"companyWebsite,omitempty" yaml:"companyWebsite,omitempty"`
	CompanySize    string    `json:"companySize,omitempty"    yaml:"companySize,omitempty"`
	Plan           string    `json:"plan,omitempty" yaml:"plan,omitempty"`
	CreatedAt      time.Time `json:"createdAt"      yaml:"createdAt"`
}

// RegisterParams are the inputs of a registration.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Plan     string
}

// CompanyProfile holds the attributes collected by the setup step.
type CompanyProfile struct {
	Name    string `json:"companyName"`
	Website string `json:"companyWebsite"`
	Size    string `json:"companySize"`
}

// NormalizeEmail returns the canonical form used for email comparison.
// Surrounding whitespace is dropped as well as case, so pasted addresses match.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailsEqual reports whether two emails refer to the same account.
func EmailsEqual(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}
