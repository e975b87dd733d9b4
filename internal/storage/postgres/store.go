package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/migration"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/migrations"
)

// notifyChannel carries a payload-free ping after every committed update.
const notifyChannel = constants.AppName + "_preferences"

type Store struct {
	connStr string
	db      *sql.DB

	mu sync.Mutex
	bc *storage.Broadcaster

	listenOnce sync.Once
	listenErr  error
	listener   *pq.Listener
	stop       context.CancelFunc
	done       chan struct{}
}

func New(connStr string) *Store {
	return &Store{
		connStr: withSearchPath(connStr),
		bc:      storage.NewBroadcaster(),
	}
}

func (s *Store) open() (*sql.DB, error) {
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func (s *Store) Init() error {
	db, err := s.open()
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return connectError(s.connStr, err)
	}
	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + constants.AppName); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.db = db

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}

	db, err := s.open()
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return connectError(s.connStr, err)
	}
	s.db = db

	return s.validateSchemaVersion()
}

func (s *Store) Close() error {
	if s.stop != nil {
		s.stop()
		<-s.done
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) runner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return nil, fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	return migration.NewRunner(s.db, subFS, migration.DriverPostgres)
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
		return fmt.Errorf("%w: postgres schema %s has no tables", storage.ErrNotInitialized, constants.AppName)
	}
	return runner.ValidateVersion()
}

// GetConfigPath returns a non-sensitive identifier instead of the connection string.
func (s *Store) GetConfigPath() string {
	return "postgresql"
}

func (s *Store) ReadAll(ctx context.Context) (map[string]string, error) {
	if s.db == nil {
		return nil, storage.ErrNotInitialized
	}
	return readPreferences(ctx, s.db)
}

// Update holds a table lock that conflicts with itself for the whole
// read-modify-write, so concurrent writers from any host queue up.
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

	if _, err := tx.ExecContext(ctx, "LOCK TABLE preferences IN SHARE ROW EXCLUSIVE MODE"); err != nil {
		return fmt.Errorf("failed to lock preferences: %w", err)
	}

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
	// Delivered to listeners only once the transaction commits.
	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, '')", notifyChannel); err != nil {
		return fmt.Errorf("failed to queue change notification: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}

	s.bc.Publish(next)
	return nil
}

func (s *Store) Watch(ctx context.Context) (<-chan map[string]string, error) {
	if s.db == nil {
		return nil, storage.ErrNotInitialized
	}

	s.listenOnce.Do(func() {
		s.listenErr = s.startListener()
	})
	if s.listenErr != nil {
		return nil, s.listenErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	initial, err := readPreferences(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return s.bc.Subscribe(ctx, initial), nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readPreferences(ctx context.Context, q querier) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT key, value FROM preferences")
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs[key] = value
	}
	return prefs, rows.Err()
}

func writePreferences(ctx context.Context, tx *sql.Tx, set map[string]string, del []string) error {
	if len(set) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO preferences (key, value, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for key, value := range set {
			if _, err := stmt.ExecContext(ctx, key, value); err != nil {
				return fmt.Errorf("failed to write preference %s: %w", key, err)
			}
		}
	}

	if len(del) > 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM preferences WHERE key = ANY($1)", pq.Array(del)); err != nil {
			return fmt.Errorf("failed to delete preferences: %w", err)
		}
	}
	return nil
}
