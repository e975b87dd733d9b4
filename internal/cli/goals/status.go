package goals

import (
	"fmt"
	"strings"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/models"
)

type StatusCmd struct {
	Follow bool `help:"Keep printing the status whenever the goal changes." short:"f"`
}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	if c.Follow {
		return c.follow(ctx)
	}

	opCtx, cancel := ctx.Timeout()
	defer cancel()

	goal, err := ctx.Goals.Get(opCtx)
	if err != nil {
		return err
	}
	ctx.Printf("%s", formatStatus(goal, ctx.Goals.Today()))
	return nil
}

// follow streams snapshots until the base context is cancelled. It is not
// bounded by the command timeout.
func (c *StatusCmd) follow(ctx *cli.Context) error {
	snapshots, err := ctx.Goals.Observe(ctx.Base)
	if err != nil {
		return err
	}
	for goal := range snapshots {
		ctx.Printf("%s\n", formatStatus(goal, ctx.Goals.Today()))
	}
	return nil
}

func formatStatus(goal *models.Goal, today string) string {
	if goal == nil {
		return "No active goal.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Goal:      %s\n", goal.Name)
	fmt.Fprintf(&b, "Started:   %s\n", goal.StartDate)
	fmt.Fprintf(&b, "Progress:  %d/%d days (%d%%)\n", goal.DaysCompleted(), goal.TotalDays, goal.ProgressPercent())
	fmt.Fprintf(&b, "Remaining: %d days\n", goal.DaysRemaining())
	if goal.IsMarked(today) {
		fmt.Fprintf(&b, "Today:     marked\n")
	} else {
		fmt.Fprintf(&b, "Today:     not marked yet\n")
	}
	return b.String()
}
