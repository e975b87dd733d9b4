package postgres

import (
	"context"
	"fmt"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/daystreak/internal/logger"
)

const (
	listenerMinReconnect = 1 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

func (s *Store) startListener() error {
	listener := pq.NewListener(s.connStr, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("postgres listener event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.stop = cancel
	s.done = make(chan struct{})

	go s.listenLoop(ctx)
	return nil
}

// listenLoop re-reads the table on every notification. A nil notification
// means the connection was re-established and events may have been missed,
// so it triggers a re-read as well.
func (s *Store) listenLoop(ctx context.Context) {
	defer close(s.done)
	defer s.listener.Close()

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.listener.Notify:
			s.refresh(ctx)
		case <-ticker.C:
			if err := s.listener.Ping(); err != nil {
				logger.Warn("postgres listener ping failed", "error", err)
			}
		}
	}
}

func (s *Store) refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := readPreferences(ctx, s.db)
	if err != nil {
		logger.Warn("failed to re-read preferences after notification", "error", err)
		return
	}
	s.bc.Publish(snapshot)
}
