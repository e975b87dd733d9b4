package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/julianstephens/daystreak/internal/logger"
)

// startFileWatcher watches the directory holding the database. Watching the
// directory survives SQLite replacing or recreating the WAL file.
func (s *Store) startFileWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(s.path)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to resolve database path: %w", err)
	}

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.watcher = watcher

	trigger := make(chan struct{}, 1)
	s.loops.Go(func() { s.watchLoop(ctx, watcher, filepath.Base(absPath), trigger) })
	s.loops.Go(func() { s.refreshLoop(ctx, trigger) })
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, dbFile string, trigger chan<- struct{}) {
	defer watcher.Close()

	walFile := dbFile + "-wal"
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if name != dbFile && name != walFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case trigger <- struct{}{}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("database watcher error", "path", s.path, "error", err)
		}
	}
}

// refreshLoop coalesces bursts of file events into one re-read.
func (s *Store) refreshLoop(ctx context.Context, trigger <-chan struct{}) {
	timer := time.NewTimer(s.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
			timer.Reset(s.debounce)
		case <-timer.C:
			s.refresh(ctx)
		}
	}
}
