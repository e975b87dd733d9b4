package storage

import (
	"context"
	"errors"
)

var (
	// ErrNoChange is returned by a Transform to abandon an update without writing.
	ErrNoChange = errors.New("no change")
	// ErrNotInitialized is returned when the backing store has not been created yet.
	ErrNotInitialized = errors.New("storage not initialized")
	// ErrUnsupportedStore is returned for store locations no provider understands.
	ErrUnsupportedStore = errors.New("unsupported store")
)

// Transform receives a private copy of the current mapping and returns the
// complete mapping to persist. Keys absent from the result are removed.
type Transform func(current map[string]string) (map[string]string, error)

// Provider is a flat string key-value store with atomic whole-mapping updates
// and a change stream.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// ReadAll returns a snapshot of every key.
	ReadAll(ctx context.Context) (map[string]string, error)
	// Update runs fn and persists its result as one atomic write. The read fn
	// sees and the write are serialized against every other Update.
	Update(ctx context.Context, fn Transform) error
	// Watch emits the current mapping, then every committed change in commit
	// order. The channel closes when ctx is done.
	Watch(ctx context.Context) (<-chan map[string]string, error)

	// Utils
	GetConfigPath() string
}
