package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidKey is returned for keys that are empty or contain path elements.
	ErrInvalidKey = errors.New("invalid key")
	// ErrUnknownDriver is returned when the configured store driver is not supported.
	ErrUnknownDriver = errors.New("unknown store driver")
	// ErrClosed is returned when using a store after Close.
	ErrClosed = errors.New("store closed")
)

// Store is a flat, durable key/value store in the manner of browser local
// storage: a handful of well-known keys holding JSON documents that are
// replaced as a whole.
type Store interface {
	// Get returns the value stored under key.
	// Returns the value and true if found, or nil and false if the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// StoreFactory is a function that creates a new Store instance.
// Returns an error if initialization fails.
type StoreFactory func(ctx context.Context) (Store, error)

// ValidateKey checks that key can be used with every backend, including the
// filesystem one where it becomes a file name.
func ValidateKey(key string) error {
	switch {
	case key == "", key == ".", key == "..":
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	case strings.ContainsAny(key, `/\`+"\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return nil
}

func clone(value []byte) []byte {
	if value == nil {
		return []byte{}
	}

	return append(make([]byte, 0, len(value)), value...)
}
