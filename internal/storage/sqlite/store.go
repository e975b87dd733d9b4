package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/migration"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/migrations"
)

// DefaultDebounce is how long the file watcher waits for writes to settle
// before re-reading the database.
const DefaultDebounce = 50 * time.Millisecond

type Store struct {
	path     string
	db       *sql.DB
	debounce time.Duration

	// mu serializes in-process updates and orders change publication.
	mu sync.Mutex
	bc *storage.Broadcaster

	watchOnce sync.Once
	watchErr  error
	watcher   *fsnotify.Watcher
	stop      context.CancelFunc
	// loops tracks the file watch and refresh goroutines.
	loops sync.WaitGroup
}

func NewStore(path string) *Store {
	return &Store{
		path:     path,
		debounce: DefaultDebounce,
		bc:       storage.NewBroadcaster(),
	}
}

// dsn enables WAL so readers never block the writer, and takes the write lock
// at BEGIN so a read-modify-write transaction cannot be overtaken.
func (s *Store) dsn() string {
	return "file:" + s.path + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *Store) open() error {
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if s.db == nil {
		if err := s.open(); err != nil {
			return err
		}
	}

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s does not exist", storage.ErrNotInitialized, s.path)
	}

	if err := s.open(); err != nil {
		return err
	}
	return s.validateSchemaVersion()
}

func (s *Store) Close() error {
	if s.stop != nil {
		s.stop()
		s.loops.Wait()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) runner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(s.db, subFS, migration.DriverSQLite)
}

func (s *Store) runMigrations() error {
	runner, err := s.runner()
	if err != nil {
		return err
	}
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Info(msg)
	})
	return err
}

func (s *Store) validateSchemaVersion() error {
	runner, err := s.runner()
	if err != nil {
		return err
	}
	version, err := runner.GetCurrentVersion()
	if err != nil {
		return err
	}
	if version == 0 {
		return fmt.Errorf("%w: %s has no schema", storage.ErrNotInitialized, s.path)
	}
	return runner.ValidateVersion()
}

func (s *Store) GetConfigPath() string {
	return s.path
}

// GetDB returns the underlying database connection, nil before Init or Load.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

func (s *Store) ReadAll(ctx context.Context) (map[string]string, error) {
	if s.db == nil {
		return nil, storage.ErrNotInitialized
	}
	return readPreferences(ctx, s.db)
}

func (s *Store) Update(ctx context.Context, fn storage.Transform) error {
	if s.db == nil {
		return storage.ErrNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := readPreferences(ctx, tx)
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

	set, del := storage.Diff(current, next)
	if err := writePreferences(ctx, tx, set, del); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}

	s.bc.Publish(next)
	return nil
}

// Watch streams the preference mapping. Writes from other processes are
// picked up by watching the database and WAL files.
func (s *Store) Watch(ctx context.Context) (<-chan map[string]string, error) {
	if s.db == nil {
		return nil, storage.ErrNotInitialized
	}

	s.watchOnce.Do(func() {
		s.watchErr = s.startFileWatcher()
	})
	if s.watchErr != nil {
		return nil, s.watchErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	initial, err := readPreferences(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return s.bc.Subscribe(ctx, initial), nil
}

// refresh re-reads the database and publishes it if it changed behind our back.
func (s *Store) refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := readPreferences(ctx, s.db)
	if err != nil {
		logger.Warn("failed to re-read preferences after file change", "path", s.path, "error", err)
		return
	}
	s.bc.Publish(snapshot)
}
