package tokenstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// EnvBackend provides read-only access to credentials provisioned through
// environment variables. Key "refreshToken" with prefix "OPNADMIN_" maps to
// OPNADMIN_REFRESH_TOKEN.
type EnvBackend struct {
	prefix string
}

// Compile-time check to ensure EnvBackend implements Backend
var _ Backend = (*EnvBackend)(nil)

// NewEnvBackend creates an EnvBackend that reads variables starting with prefix.
func NewEnvBackend(prefix string) (*EnvBackend, error) {
	if prefix == "" {
		return nil, fmt.Errorf("environment prefix cannot be empty")
	}

	return &EnvBackend{
		prefix: prefix,
	}, nil
}

// Get returns the value of the environment variable for key. Returns ErrNotFound if unset or empty.
func (e *EnvBackend) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value := os.Getenv(e.VarName(key))
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Set is not supported for environment variables (they are read-only).
func (e *EnvBackend) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("setting %s: %w", e.VarName(key), ErrReadOnly)
}

// Remove is not supported for environment variables (they are read-only).
func (e *EnvBackend) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, ok := os.LookupEnv(e.VarName(key)); !ok {
		return nil
	}
	return fmt.Errorf("removing %s: %w", e.VarName(key), ErrReadOnly)
}

// VarName returns the environment variable consulted for key.
func (e *EnvBackend) VarName(key string) string {
	var sb strings.Builder
	sb.WriteString(e.prefix)
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			sb.WriteByte('_')
		}
		sb.WriteRune(unicode.ToUpper(r))
	}
	return sb.String()
}
