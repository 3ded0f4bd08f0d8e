package tokenstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Backend.Get when the key holds no value.
	ErrNotFound = errors.New("token store: key not found")

	// ErrReadOnly is returned by backends that cannot be written (e.g. environment variables).
	ErrReadOnly = errors.New("token store: backend is read-only")
)

// Backend is a single storage medium holding string values by key.
type Backend interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, overwriting any existing value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// ExpiringBackend is a Backend whose entries carry their own lifetime, such as cookies.
type ExpiringBackend interface {
	Backend

	// SetWithExpiry stores value under key until ttl elapses.
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
}
