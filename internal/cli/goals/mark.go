package goals

import (
	"errors"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/logger"
)

var ErrNoGoal = errors.New("no active goal; create one with 'daystreak goal create'")

type MarkCmd struct{}

// Run marks today and, on a new mark, sends a praise notification.
func (c *MarkCmd) Run(ctx *cli.Context) error {
	opCtx, cancel := ctx.Timeout()
	defer cancel()

	today := ctx.Goals.Today()
	marked, err := ctx.Goals.Mark(opCtx, today)
	if err != nil {
		return err
	}

	goal, err := ctx.Goals.Get(opCtx)
	if err != nil {
		return err
	}
	if goal == nil {
		return ErrNoGoal
	}

	if !marked {
		ctx.Printf("Today (%s) is already marked for %q.\n", today, goal.Name)
		return nil
	}

	ctx.Printf("Marked %s for %q: %d/%d days (%d%%)\n",
		today, goal.Name, goal.DaysCompleted(), goal.TotalDays, goal.ProgressPercent())

	if ctx.Notifier != nil && ctx.Messages != nil {
		title, body := ctx.Messages.Praise(goal.Name)
		if err := ctx.Notifier.Deliver(title, body); err != nil {
			logger.Warn("failed to deliver praise notification", "error", err)
		}
	}
	return nil
}
