package context

import (
	"context"

	"github.com/mkrupp/teamify/internal/domain"
)

const contextKeySessionUser = contextKey("sessionUser")

// SessionUserFromContext extracts the authenticated session user from the context.
// Returns the user and true if present, or nil and false if not present.
func SessionUserFromContext(ctx context.Context) (*domain.SessionUser, bool) {
	user, ok := ctx.Value(contextKeySessionUser).(*domain.SessionUser)

	return user, ok && user != nil
}

// WithSessionUser creates a new context carrying the authenticated session user.
func WithSessionUser(ctx context.Context, user *domain.SessionUser) context.Context {
	return context.WithValue(ctx, contextKeySessionUser, user)
}
