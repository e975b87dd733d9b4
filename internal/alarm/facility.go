// Package alarm provides one-shot exact timers keyed by slot ID. There is no
// native repetition: a caller that wants a daily alarm registers again from
// its callback.
package alarm

import (
	"errors"
	"time"
)

var (
	ErrFacilityClosed = errors.New("alarm facility closed")
	ErrPastInstant    = errors.New("alarm instant is not in the future")
)

// Callback receives the slot ID of a registration that came due. It runs at
// most once per registration.
type Callback func(slotID string)

// Facility registers one-shot exact timers. Registering a slot that is
// already armed replaces the earlier registration.
type Facility interface {
	RegisterOneShotExact(when time.Time, slotID string) error
	Cancel(slotID string) error
}
