// Package store defines the item store interface and its backends.
//
// An item store is a flat string-to-string map in the spirit of a browser's
// local storage: callers own the serialization of the values they put in it.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey is returned for keys that cannot be stored by every backend.
var ErrInvalidKey = errors.New("invalid item key")

// Store is the interface that all backing stores must implement.
type Store interface {
	// GetItem returns the value stored under key. ok is false when the key is absent.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)

	// SetItem inserts or replaces the value stored under key.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes a key. Returns true if it existed.
	RemoveItem(ctx context.Context, key string) (bool, error)

	// Keys returns the names of all stored keys, sorted.
	Keys(ctx context.Context) ([]string, error)

	// Close releases any resources held by the backend.
	Close() error
}

// ValidateKey rejects keys that would escape a data directory or collide with
// backend bookkeeping files.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, ".") || strings.HasPrefix(key, "_") ||
		strings.ContainsAny(key, `/\:`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
