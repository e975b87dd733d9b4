// Package notifier delivers reminder and praise notifications to the user
// through one or more sinks.
package notifier

import (
	"errors"
	"fmt"

	"github.com/julianstephens/daystreak/internal/logger"
)

// Deliverer shows one notification. Delivery is best effort; callers log
// failures and carry on.
type Deliverer interface {
	Deliver(title, body string) error
}

// Multi delivers to every sink and reports the sinks that failed.
type Multi []Deliverer

func (m Multi) Deliver(title, body string) error {
	var errs []error
	for _, d := range m {
		if err := d.Deliver(title, body); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", d, err))
		}
	}
	return errors.Join(errs...)
}

// DryRun logs the notification instead of showing it.
type DryRun struct{}

func (DryRun) Deliver(title, body string) error {
	logger.Info("notification (dry run)", "title", title, "body", body)
	return nil
}
