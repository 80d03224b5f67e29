package store

import (
	"context"
	"errors"
)

// ErrNotFound reports an absent key. Absence is a normal state for every
// consumer of the store, never a capability failure.
var ErrNotFound = errors.New("key not found")

// Store is the persistent key-value capability behind credentials,
// settings, and prompt-template overrides.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set writes value under key. The write completes fully or fails; a
	// partial write is never observable by a subsequent Get.
	Set(ctx context.Context, key, value string) error
	Close() error
}
