package user

import (
	"context"
	"errors"

	"github.com/mkrupp/teamify/internal/domain"
)

// ErrCorruptData is joined into errors caused by stored values that cannot be decoded.
var ErrCorruptData = errors.New("corrupt stored data")

// Repository defines the interface for user and session persistence.
type Repository interface {
	// UsersExist reports whether a user collection has ever been written,
	// regardless of whether it decodes.
	UsersExist(ctx context.Context) (bool, error)

	// LoadUsers returns the stored user collection in insertion order.
	// Returns an empty slice when no collection exists.
	// Returns an error joined with ErrCorruptData if the collection does not decode.
	LoadUsers(ctx context.Context) ([]*domain.User, error)

	// SaveUsers replaces the stored user collection.
	SaveUsers(ctx context.Context, users []*domain.User) error

	// LoadSession returns the current session marker.
	// Returns the session and true if found, or nil and false if absent.
	// Returns an error joined with ErrCorruptData if the marker does not decode.
	LoadSession(ctx context.Context) (*domain.Session, bool, error)

	// SaveSession replaces the current session marker.
	SaveSession(ctx context.Context, session domain.Session) error

	// DeleteSession removes the current session marker. Deleting an absent
	// marker is not an error.
	DeleteSession(ctx context.Context) error

	// Close releases any resources held by the repository.
	// Returns an error if cleanup fails.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func(ctx context.Context) (Repository, error)
