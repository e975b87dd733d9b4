package alarm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/daystreak/internal/logger"
)

type registration struct {
	token uuid.UUID
	jobID uuid.UUID
	when  time.Time
}

// GocronFacility backs Facility with gocron one-time jobs.
type GocronFacility struct {
	scheduler gocron.Scheduler
	clock     clockwork.Clock
	callback  Callback

	mu     sync.Mutex
	slots  map[string]*registration
	closed bool
}

func NewGocronFacility(callback Callback, clock clockwork.Clock) (*GocronFacility, error) {
	if callback == nil {
		return nil, fmt.Errorf("alarm callback is required")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &GocronFacility{
		scheduler: s,
		clock:     clock,
		callback:  callback,
		slots:     make(map[string]*registration),
	}, nil
}

func (f *GocronFacility) Start() {
	logger.Debug("Starting alarm scheduler")
	f.scheduler.Start()
}

// Shutdown drops pending registrations and waits for running callbacks.
func (f *GocronFacility) Shutdown() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.slots = make(map[string]*registration)
	f.mu.Unlock()

	logger.Debug("Stopping alarm scheduler")
	return f.scheduler.Shutdown()
}

func (f *GocronFacility) RegisterOneShotExact(when time.Time, slotID string) error {
	if !when.After(f.clock.Now()) {
		return fmt.Errorf("%w: %s at %s", ErrPastInstant, slotID, when.Format(time.RFC3339))
	}

	reg := &registration{token: uuid.New(), when: when}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFacilityClosed
	}
	previous := f.slots[slotID]
	f.slots[slotID] = reg
	f.mu.Unlock()

	f.removeJob(previous)

	job, err := f.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(when)),
		gocron.NewTask(f.fire, slotID, reg.token),
		gocron.WithName(slotID),
		gocron.WithTags(slotID),
	)
	if err != nil {
		f.mu.Lock()
		if f.slots[slotID] == reg {
			delete(f.slots, slotID)
		}
		f.mu.Unlock()
		return fmt.Errorf("failed to register %s: %w", slotID, err)
	}

	f.mu.Lock()
	current := f.slots[slotID] == reg
	if current {
		reg.jobID = job.ID()
	}
	f.mu.Unlock()

	// Cancelled or replaced while the job was being created.
	if !current {
		_ = f.scheduler.RemoveJob(job.ID())
	}
	return nil
}

func (f *GocronFacility) Cancel(slotID string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFacilityClosed
	}
	reg := f.slots[slotID]
	delete(f.slots, slotID)
	f.mu.Unlock()

	f.removeJob(reg)
	return nil
}

// Pending returns the armed instant of every slot, for status output.
func (f *GocronFacility) Pending() map[string]time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]time.Time, len(f.slots))
	for id, reg := range f.slots {
		out[id] = reg.when
	}
	return out
}

func (f *GocronFacility) removeJob(reg *registration) {
	if reg == nil || reg.jobID == uuid.Nil {
		return
	}
	if err := f.scheduler.RemoveJob(reg.jobID); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		logger.Warn("failed to remove alarm job", "job", reg.jobID, "error", err)
	}
}

// fire runs on gocron's executor. Only the registration that is still current
// for the slot reaches the callback, which makes delivery at most once.
func (f *GocronFacility) fire(slotID string, token uuid.UUID) {
	f.mu.Lock()
	reg, ok := f.slots[slotID]
	if !ok || reg.token != token {
		f.mu.Unlock()
		return
	}
	delete(f.slots, slotID)
	f.mu.Unlock()

	f.callback(slotID)
}
