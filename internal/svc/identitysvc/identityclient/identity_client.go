package identityclient

import (
	"context"

	"github.com/mkrupp/teamify/internal/domain"
)

// IdentityClient validates session tokens against an identity service.
type IdentityClient interface {
	// Validate checks if the given token is valid.
	// Returns the session user associated with the token, whether the token is valid,
	// and any error encountered during validation.
	Validate(ctx context.Context, token string) (*domain.SessionUser, bool, error)
}
