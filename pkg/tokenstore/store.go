// Package tokenstore is the durable client-side storage shared by the
// session store, the authorization gate and the API clients.
package tokenstore

import (
	"context"
	"errors"
)

// Well-known keys. Both are written and cleared by the session store only.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

var ErrNotFound = errors.New("key not found")

// Store defines the durable key/value storage interface.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes all given keys in one step.
	Delete(ctx context.Context, keys ...string) error
}

// Token returns the persisted bearer token, or "" when absent or unreadable.
// Reads are a best-effort snapshot.
func Token(ctx context.Context, s Store) string {
	if s == nil {
		return ""
	}
	tok, err := s.Get(ctx, KeyToken)
	if err != nil {
		return ""
	}
	return tok
}
