package system

import (
	"github.com/julianstephens/daystreak/internal/cli"
)

type InitCmd struct{}

// Run creates or migrates the backing store. It is safe to run again.
func (c *InitCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.Init(); err != nil {
		return err
	}
	ctx.Printf("Initialized daystreak storage at: %s\n", ctx.Store.GetConfigPath())
	return nil
}
