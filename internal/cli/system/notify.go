package system

import (
	"github.com/julianstephens/daystreak/internal/cli"
)

type NotifyCmd struct {
	Title  string `help:"Notification title." required:""`
	Body   string `help:"Notification body."`
	DryRun bool   `help:"Print the notification instead of sending it."`
}

func (c *NotifyCmd) Run(ctx *cli.Context) error {
	if c.DryRun || ctx.Notifier == nil {
		ctx.Printf("[dry-run] %s: %s\n", c.Title, c.Body)
		return nil
	}
	return ctx.Notifier.Deliver(c.Title, c.Body)
}
