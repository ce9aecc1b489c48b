package domain

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoAuthToken is returned when an authentication token is required but not provided.
	ErrNoAuthToken = errors.New("no auth token")
	// ErrInvalidAuthToken is returned when a token's signature is invalid, it has expired,
	// or its session has ended.
	ErrInvalidAuthToken = errors.New("invalid auth token")
)

// AuthClaims are the claims of a session token handed to HTTP clients.
type AuthClaims struct {
	jwt.RegisteredClaims

	Email       string `json:"email"`
	Name        string `json:"name"`
	CompanyName string `json:"companyName,omitempty"`
	Plan        string `json:"plan,omitempty"`
}

// SessionUser returns the session projection carried by the claims.
func (c *AuthClaims) SessionUser() SessionUser {
	return SessionUser{
		ID:          c.Subject,
		Name:        c.Name,
		Email:       c.Email,
		CompanyName: c.CompanyName,
		Plan:        c.Plan,
	}
}

// LoginResponse is returned to HTTP clients after a successful login.
type LoginResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}
