// Package reminder keeps up to three daily reminders armed on a one-shot
// alarm facility by registering each slot again every time it fires.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/daystreak/internal/alarm"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/metrics"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/notifier"
	"github.com/julianstephens/daystreak/internal/utils"
)

// GoalReader is the read side of the goal store the scheduler needs.
type GoalReader interface {
	Get(ctx context.Context) (*models.Goal, error)
}

type Option func(*Scheduler)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(s *Scheduler) { s.metrics = rec }
}

func WithMessages(m *notifier.Messages) Option {
	return func(s *Scheduler) { s.messages = m }
}

type Scheduler struct {
	goals     GoalReader
	facility  alarm.Facility
	deliverer notifier.Deliverer
	messages  *notifier.Messages
	clock     clockwork.Clock
	metrics   metrics.Recorder

	// mu orders arming against in-flight firings.
	mu       sync.Mutex
	armed    map[string]time.Time
	disarmed map[string]bool
}

func New(goals GoalReader, facility alarm.Facility, deliverer notifier.Deliverer, opts ...Option) *Scheduler {
	s := &Scheduler{
		goals:     goals,
		facility:  facility,
		deliverer: deliverer,
		clock:     clockwork.NewRealClock(),
		metrics:   metrics.NoopRecorder{},
		armed:     make(map[string]time.Time),
		disarmed:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.messages == nil {
		s.messages = notifier.NewMessages(nil)
	}
	return s
}

// ArmAll registers every slot at its next future occurrence, replacing any
// earlier registration. Slots the facility refuses are reported together.
func (s *Scheduler) ArmAll(ctx context.Context) error {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, slot := range Slots {
		delete(s.disarmed, slot.ID)
		if err := s.register(slot, utils.NextOccurrence(now, slot.Hour, slot.Minute)); err != nil {
			errs = append(errs, err)
		}
	}
	s.metrics.SetArmedSlots(len(s.armed))
	return errors.Join(errs...)
}

// DisarmAll cancels every slot. A firing already in progress will not
// re-register its slot afterwards.
func (s *Scheduler) DisarmAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, slot := range Slots {
		s.disarmed[slot.ID] = true
		delete(s.armed, slot.ID)
		if err := s.facility.Cancel(slot.ID); err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", slot.ID, err))
		}
	}
	s.metrics.SetArmedSlots(0)
	logger.Info("reminders disarmed")
	return errors.Join(errs...)
}

// OnFire handles a due slot: remind if today is still unmarked, then arm the
// slot again one calendar day after the firing, whatever the outcome. A firing
// with no slot ID arms every slot; an unrecognised ID is ignored.
func (s *Scheduler) OnFire(ctx context.Context, slotID string) {
	firedAt := s.clock.Now()
	fireID := uuid.NewString()

	if slotID == "" {
		logger.Warn("reminder fired without a slot, re-arming all", "fire_id", fireID)
		if err := s.ArmAll(ctx); err != nil {
			logger.Warn("failed to re-arm reminders", "fire_id", fireID, "error", err)
		}
		return
	}
	slot, ok := SlotByID(slotID)
	if !ok {
		logger.Warn("unknown reminder slot fired, ignoring", "slot", slotID, "fire_id", fireID)
		return
	}

	logger.Info("reminder fired", "slot", slot.ID, "fire_id", fireID)
	s.metrics.ObserveFireDelay(slot.ID, firedAt.Sub(utils.AtTimeOfDay(firedAt, slot.Hour, slot.Minute)))

	s.mu.Lock()
	delete(s.armed, slot.ID)
	s.mu.Unlock()

	s.remind(ctx, slot, firedAt, fireID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disarmed[slot.ID] {
		logger.Info("slot disarmed during firing, not re-arming", "slot", slot.ID, "fire_id", fireID)
		return
	}
	if err := s.register(slot, utils.NextDayAt(firedAt, slot.Hour, slot.Minute)); err != nil {
		logger.Warn("failed to re-arm reminder", "slot", slot.ID, "fire_id", fireID, "error", err)
	}
	s.metrics.SetArmedSlots(len(s.armed))
}

// Armed returns the registered instant of every slot the scheduler armed.
func (s *Scheduler) Armed() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.armed)
}

func (s *Scheduler) remind(ctx context.Context, slot Slot, firedAt time.Time, fireID string) {
	goal, err := s.goals.Get(ctx)
	if err != nil {
		logger.Warn("failed to read goal for reminder", "slot", slot.ID, "fire_id", fireID, "error", err)
		s.metrics.IncFire(slot.ID, metrics.FireReadFailed)
		return
	}
	if goal == nil {
		logger.Debug("no goal, skipping reminder", "slot", slot.ID, "fire_id", fireID)
		s.metrics.IncFire(slot.ID, metrics.FireNoGoal)
		return
	}
	if goal.IsMarked(utils.FormatDate(firedAt)) {
		logger.Debug("today already marked, skipping reminder", "slot", slot.ID, "fire_id", fireID)
		s.metrics.IncFire(slot.ID, metrics.FireAlreadyMarked)
		return
	}

	title, body := s.messages.Reminder(goal.Name)
	if err := s.deliverer.Deliver(title, body); err != nil {
		logger.Warn("failed to deliver reminder", "slot", slot.ID, "fire_id", fireID, "error", err)
		s.metrics.IncFire(slot.ID, metrics.FireDeliveryFailed)
		return
	}
	logger.Info("reminder delivered", "slot", slot.ID, "fire_id", fireID, "goal", goal.Name)
	s.metrics.IncFire(slot.ID, metrics.FireDelivered)
}

// register must be called with mu held.
func (s *Scheduler) register(slot Slot, when time.Time) error {
	if err := s.facility.RegisterOneShotExact(when, slot.ID); err != nil {
		delete(s.armed, slot.ID)
		s.metrics.IncArm(slot.ID, metrics.ArmFailed)
		logger.Warn("alarm registration refused", "slot", slot.ID, "when", when, "error", err)
		return fmt.Errorf("arm %s: %w", slot.ID, err)
	}
	s.armed[slot.ID] = when
	s.metrics.IncArm(slot.ID, metrics.ArmOK)
	logger.Info("reminder armed", "slot", slot.ID, "next", when.Format(time.RFC3339))
	return nil
}
