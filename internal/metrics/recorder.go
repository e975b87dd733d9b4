// Package metrics exposes reminder scheduler observability hooks, with a
// Prometheus implementation for the daemon.
package metrics

import "time"

// ArmResult labels the outcome of registering a slot.
type ArmResult string

const (
	ArmOK     ArmResult = "ok"
	ArmFailed ArmResult = "failed"
)

// FireOutcome labels what a firing did before re-arming.
type FireOutcome string

const (
	FireDelivered      FireOutcome = "delivered"
	FireDeliveryFailed FireOutcome = "delivery_failed"
	FireAlreadyMarked  FireOutcome = "already_marked"
	FireNoGoal         FireOutcome = "no_goal"
	FireReadFailed     FireOutcome = "read_failed"
)

// Recorder receives scheduler events. The daemon wires the Prometheus
// implementation; everything else can use NoopRecorder.
type Recorder interface {
	IncArm(slot string, result ArmResult)
	IncFire(slot string, outcome FireOutcome)
	ObserveFireDelay(slot string, d time.Duration)
	SetArmedSlots(n int)
}

type NoopRecorder struct{}

func (NoopRecorder) IncArm(string, ArmResult)                {}
func (NoopRecorder) IncFire(string, FireOutcome)             {}
func (NoopRecorder) ObserveFireDelay(string, time.Duration) {}
func (NoopRecorder) SetArmedSlots(int)                       {}
