package storage

import (
	"context"
	"maps"
	"sync"
)

// Broadcaster fans committed snapshots out to watchers. Each watcher owns an
// unbounded queue so Publish never blocks and never reorders.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	mu    sync.Mutex
	queue []map[string]string
	// last is the newest snapshot queued for this watcher.
	last   map[string]string
	signal chan struct{}
	out    chan map[string]string
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a watcher whose first value is initial. Callers must
// hold whatever lock orders their Publish calls so no commit slips between
// reading initial and subscribing.
func (b *Broadcaster) Subscribe(ctx context.Context, initial map[string]string) <-chan map[string]string {
	sub := &subscriber{
		signal: make(chan struct{}, 1),
		out:    make(chan map[string]string),
	}
	sub.push(CopyMap(initial))

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go b.run(ctx, sub)
	return sub.out
}

// Publish queues snapshot for every watcher. A watcher whose newest queued
// snapshot already equals it is skipped, so each watcher's dedup follows what
// it actually saw.
func (b *Broadcaster) Publish(snapshot map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		sub.pushChanged(snapshot)
	}
}

// Len returns the number of live watchers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) run(ctx context.Context, sub *subscriber) {
	defer func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		close(sub.out)
	}()

	for {
		next, ok := sub.pop()
		if !ok {
			select {
			case <-sub.signal:
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case sub.out <- next:
		case <-ctx.Done():
			return
		}
	}
}

func (s *subscriber) push(snapshot map[string]string) {
	s.mu.Lock()
	s.queue = append(s.queue, snapshot)
	s.last = CopyMap(snapshot)
	s.mu.Unlock()
	s.notify()
}

func (s *subscriber) pushChanged(snapshot map[string]string) {
	s.mu.Lock()
	if maps.Equal(s.last, snapshot) {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, CopyMap(snapshot))
	s.last = CopyMap(snapshot)
	s.mu.Unlock()
	s.notify()
}

func (s *subscriber) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) pop() (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	next := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return next, true
}
