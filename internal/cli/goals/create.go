package goals

import (
	"fmt"
	"strings"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/utils"
)

type CreateCmd struct {
	Name  string `arg:"" help:"Name of the goal."`
	Days  int    `help:"Number of days to reach the goal." required:""`
	Start string `help:"Start date (YYYY-MM-DD). Defaults to today."`
	Force bool   `help:"Replace the current goal if one exists."`
}

func (c *CreateCmd) Run(ctx *cli.Context) error {
	opCtx, cancel := ctx.Timeout()
	defer cancel()

	start := ctx.Goals.Today()
	if c.Start != "" {
		parsed, err := utils.ParseDate(c.Start)
		if err != nil {
			return fmt.Errorf("invalid start date (expected YYYY-MM-DD): %w", err)
		}
		start = parsed
	}

	goal := models.NewGoal(strings.TrimSpace(c.Name), c.Days, start)
	if err := goal.Validate(); err != nil {
		return err
	}

	if !c.Force {
		name, ok, err := ctx.Goals.GoalName(opCtx)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("goal %q already exists; use --force to replace it", name)
		}
	} else {
		ctx.PerformAutomaticBackup(opCtx)
	}

	if err := ctx.Goals.Save(opCtx, goal); err != nil {
		return err
	}
	ctx.Printf("Created goal %q: %d days starting %s\n", goal.Name, goal.TotalDays, goal.StartDate)
	return nil
}
