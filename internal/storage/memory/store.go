// Package memory provides an in-process storage.Provider. State lives only as
// long as the Store value.
package memory

import (
	"context"
	"sync"

	"github.com/julianstephens/daystreak/internal/storage"
)

type Store struct {
	mu     sync.RWMutex
	data   map[string]string
	writes int
	bc     *storage.Broadcaster
}

// NewStore returns an empty store seeded with initial, if given.
func NewStore(initial map[string]string) *Store {
	return &Store{
		data: storage.CopyMap(initial),
		bc:   storage.NewBroadcaster(),
	}
}

func (s *Store) Init() error  { return nil }
func (s *Store) Load() error  { return nil }
func (s *Store) Close() error { return nil }

func (s *Store) GetConfigPath() string {
	return ":memory:"
}

func (s *Store) ReadAll(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return storage.CopyMap(s.data), nil
}

func (s *Store) Update(ctx context.Context, fn storage.Transform) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed, err := storage.Apply(s.data, fn)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	s.data = storage.CopyMap(next)
	s.writes++
	s.bc.Publish(s.data)
	return nil
}

func (s *Store) Watch(ctx context.Context) (<-chan map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bc.Subscribe(ctx, s.data), nil
}

// Writes reports how many updates actually changed the mapping.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
