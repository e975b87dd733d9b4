// Package goalstore persists the single tracked goal on top of a flat
// storage.Provider and exposes it as a stream of snapshots.
package goalstore

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/utils"
)

type Store struct {
	provider storage.Provider
	clock    clockwork.Clock
}

func New(provider storage.Provider, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{provider: provider, clock: clock}
}

// Today is the local calendar date according to the store's clock.
func (s *Store) Today() string {
	return utils.FormatDate(s.clock.Now())
}

// Observe emits the current goal (nil when none is stored), then one snapshot
// per committed change in commit order. The channel closes once ctx is done.
func (s *Store) Observe(ctx context.Context) (<-chan *models.Goal, error) {
	changes, err := s.provider.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to watch goal: %w", err)
	}

	out := make(chan *models.Goal)
	go func() {
		defer close(out)
		for prefs := range changes {
			select {
			case out <- Decode(prefs, s.Today()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Get performs one fresh read of the goal.
func (s *Store) Get(ctx context.Context) (*models.Goal, error) {
	prefs, err := s.provider.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read goal: %w", err)
	}
	return Decode(prefs, s.Today()), nil
}

// Save replaces all four goal fields in one write. It does not validate.
func (s *Store) Save(ctx context.Context, goal models.Goal) error {
	err := s.provider.Update(ctx, func(prefs map[string]string) (map[string]string, error) {
		for k, v := range Encode(goal) {
			prefs[k] = v
		}
		return prefs, nil
	})
	if err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

// MarkToday marks the current date. See Mark.
func (s *Store) MarkToday(ctx context.Context) (bool, error) {
	return s.Mark(ctx, s.Today())
}

// Mark records date and rewrites every goal field, so a start date that was
// defaulted to today becomes fixed. It returns false, without writing, when no
// goal exists or date is already marked. The check and the write happen in
// one provider update, so concurrent callers cannot both succeed.
func (s *Store) Mark(ctx context.Context, date string) (bool, error) {
	marked := false

	err := s.provider.Update(ctx, func(prefs map[string]string) (map[string]string, error) {
		// Backends that retry on conflict run this more than once.
		marked = false

		goal := Decode(prefs, date)
		if goal == nil || goal.IsMarked(date) {
			return nil, storage.ErrNoChange
		}
		for k, v := range Encode(goal.WithMarked(date)) {
			prefs[k] = v
		}
		marked = true
		return prefs, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark %s: %w", date, err)
	}
	return marked, nil
}

// GoalName reads only the name key.
func (s *Store) GoalName(ctx context.Context) (string, bool, error) {
	prefs, err := s.provider.ReadAll(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to read goal name: %w", err)
	}
	name, ok := prefs[constants.KeyGoalName]
	return name, ok, nil
}

// DeleteGoal removes every goal key in one write.
func (s *Store) DeleteGoal(ctx context.Context) error {
	err := s.provider.Update(ctx, func(prefs map[string]string) (map[string]string, error) {
		for _, k := range constants.AllGoalKeys {
			delete(prefs, k)
		}
		return prefs, nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	return nil
}
