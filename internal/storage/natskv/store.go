// Package natskv stores the preference mapping as one JSON document in a
// NATS JetStream key-value bucket. Updates use the entry revision as a
// compare-and-swap token, and the bucket's native watch drives Watch.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/storage"
)

// maxUpdateAttempts bounds CAS retries when other writers keep winning.
const maxUpdateAttempts = 16

var ErrTooManyConflicts = errors.New("update abandoned after repeated revision conflicts")

type Store struct {
	url    string
	bucket string

	conn *nats.Conn
	js   jetstream.JetStream
	kv   jetstream.KeyValue

	mu      sync.Mutex
	bc      *storage.Broadcaster
	current map[string]string

	watchOnce sync.Once
	watchErr  error
	stop      context.CancelFunc
	done      chan struct{}
}

// New parses a nats:// location. An optional path segment names the bucket,
// e.g. nats://localhost:4222/streaks.
func New(location string) (*Store, error) {
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid NATS location %q", storage.ErrUnsupportedStore, location)
	}

	bucket := strings.Trim(u.Path, "/")
	if bucket == "" {
		bucket = constants.DefaultNATSBucket
	}
	u.Path = ""

	return &Store{
		url:    u.String(),
		bucket: bucket,
		bc:     storage.NewBroadcaster(),
	}, nil
}

func (s *Store) connect() error {
	if s.conn != nil {
		return nil
	}
	conn, err := nats.Connect(s.url, nats.Name(constants.AppName))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}
	s.conn = conn
	s.js = js
	return nil
}

// Init creates the bucket if it does not exist yet.
func (s *Store) Init() error {
	if err := s.connect(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := s.js.KeyValue(ctx, s.bucket)
	if err == nil {
		s.kv = kv
		return nil
	}

	kv, err = s.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      s.bucket,
		Description: "daystreak goal preferences",
		History:     1,
	})
	if err != nil {
		return fmt.Errorf("failed to create KV bucket: %w", err)
	}
	s.kv = kv
	logger.Info("Created KV bucket", "bucket", s.bucket)
	return nil
}

func (s *Store) Load() error {
	if s.kv != nil {
		return nil
	}
	if err := s.connect(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := s.js.KeyValue(ctx, s.bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		return fmt.Errorf("%w: bucket %s does not exist", storage.ErrNotInitialized, s.bucket)
	}
	if err != nil {
		return fmt.Errorf("failed to open KV bucket: %w", err)
	}
	s.kv = kv
	return nil
}

func (s *Store) Close() error {
	if s.stop != nil {
		s.stop()
		<-s.done
	}
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *Store) GetConfigPath() string {
	return s.url + "/" + s.bucket
}

func (s *Store) ReadAll(ctx context.Context) (map[string]string, error) {
	if s.kv == nil {
		return nil, storage.ErrNotInitialized
	}
	current, _, err := s.get(ctx)
	return current, err
}

// get returns the stored mapping and its revision. A missing or deleted key
// is an empty mapping at revision 0.
func (s *Store) get(ctx context.Context) (map[string]string, uint64, error) {
	entry, err := s.kv.Get(ctx, constants.NATSGoalKey)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return map[string]string{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", constants.NATSGoalKey, err)
	}
	current, err := decode(entry.Value())
	if err != nil {
		return nil, 0, err
	}
	return current, entry.Revision(), nil
}

// Update retries the transform whenever another writer commits between our
// read and our write. The transform may therefore run more than once.
func (s *Store) Update(ctx context.Context, fn storage.Transform) error {
	if s.kv == nil {
		return storage.ErrNotInitialized
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, rev, err := s.get(ctx)
		if err != nil {
			return err
		}

		next, changed, err := storage.Apply(current, fn)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		err = s.put(ctx, next, rev)
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return fmt.Errorf("failed to write %s: %w", constants.NATSGoalKey, err)
		}
		logger.Debug("KV revision conflict, retrying", "bucket", s.bucket, "revision", rev, "attempt", attempt+1)
	}
	return ErrTooManyConflicts
}

func (s *Store) put(ctx context.Context, next map[string]string, rev uint64) error {
	if len(next) == 0 {
		if rev == 0 {
			return nil
		}
		return s.kv.Delete(ctx, constants.NATSGoalKey, jetstream.LastRevision(rev))
	}

	data, err := encode(next)
	if err != nil {
		return err
	}
	if rev == 0 {
		_, err = s.kv.Create(ctx, constants.NATSGoalKey, data)
		return err
	}
	_, err = s.kv.Update(ctx, constants.NATSGoalKey, data, rev)
	return err
}

func (s *Store) Watch(ctx context.Context) (<-chan map[string]string, error) {
	if s.kv == nil {
		return nil, storage.ErrNotInitialized
	}

	s.watchOnce.Do(func() {
		s.watchErr = s.startWatcher()
	})
	if s.watchErr != nil {
		return nil, s.watchErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bc.Subscribe(ctx, s.current), nil
}

// startWatcher blocks until the bucket watcher has replayed the current value,
// so every later subscriber starts from a known snapshot.
func (s *Store) startWatcher() error {
	ctx, cancel := context.WithCancel(context.Background())
	w, err := s.kv.Watch(ctx, constants.NATSGoalKey)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to watch %s: %w", constants.NATSGoalKey, err)
	}

	s.current = map[string]string{}
	for entry := range w.Updates() {
		if entry == nil {
			break
		}
		s.current = entryMapping(entry)
	}

	s.stop = cancel
	s.done = make(chan struct{})
	go s.watchLoop(ctx, w)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, w jetstream.KeyWatcher) {
	defer close(s.done)
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-w.Updates():
			if !ok {
				return
			}
			if entry == nil {
				continue
			}
			s.mu.Lock()
			s.current = entryMapping(entry)
			s.bc.Publish(s.current)
			s.mu.Unlock()
		}
	}
}

func entryMapping(entry jetstream.KeyValueEntry) map[string]string {
	switch entry.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		return map[string]string{}
	}
	m, err := decode(entry.Value())
	if err != nil {
		logger.Warn("ignoring undecodable KV entry", "key", entry.Key(), "revision", entry.Revision(), "error", err)
		return map[string]string{}
	}
	return m
}

func encode(m map[string]string) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	return data, nil
}

func decode(data []byte) (map[string]string, error) {
	m := map[string]string{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return m, nil
}

// isConflict reports whether err means the revision we read is stale.
func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
