package goals

import "github.com/julianstephens/daystreak/internal/cli"

type DeleteCmd struct{}

func (c *DeleteCmd) Run(ctx *cli.Context) error {
	opCtx, cancel := ctx.Timeout()
	defer cancel()

	name, ok, err := ctx.Goals.GoalName(opCtx)
	if err != nil {
		return err
	}
	if !ok {
		ctx.Printf("No goal to delete.\n")
		return nil
	}

	ctx.PerformAutomaticBackup(opCtx)
	if err := ctx.Goals.DeleteGoal(opCtx); err != nil {
		return err
	}
	ctx.Printf("Deleted goal %q.\n", name)
	return nil
}
