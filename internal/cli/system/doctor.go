package system

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/goalstore"
	"github.com/julianstephens/daystreak/internal/keyring"
)

var ErrDiagnosticsFailed = errors.New("one or more diagnostics failed")

type DoctorCmd struct{}

type diagnostic struct {
	name string
	// warnOnly checks never fail the command.
	warnOnly   bool
	needsStore bool
	run        func(opCtx context.Context, ctx *cli.Context, prefs map[string]string) error
}

var diagnostics = []diagnostic{
	{name: "Goal data", needsStore: true, run: checkGoalData},
	{name: "Marked dates", needsStore: true, warnOnly: true, run: checkMarkedDates},
	{name: "Backups present", warnOnly: true, run: checkBackupsPresent},
	{name: "Clock/timezone", run: checkClockTimezone},
	{name: "OS keyring", warnOnly: true, run: checkKeyring},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Printf("Running diagnostics...\n\n")

	opCtx, cancel := ctx.Timeout()
	defer cancel()

	hasError := false
	prefs, err := checkStoreReachable(opCtx, ctx)
	if err != nil {
		ctx.Printf("❌ Store reachable: FAIL\n   Error: %v\n", err)
		hasError = true
	} else {
		ctx.Printf("✓ Store reachable: OK (%s)\n", ctx.Store.GetConfigPath())
	}

	for _, d := range diagnostics {
		if d.needsStore && prefs == nil {
			ctx.Printf("⊘ %s: SKIPPED (store not reachable)\n", d.name)
			continue
		}
		err := d.run(opCtx, ctx, prefs)
		switch {
		case err == nil:
			ctx.Printf("✓ %s: OK\n", d.name)
		case d.warnOnly:
			ctx.Printf("⚠ %s: WARNING\n   %v\n", d.name, err)
		default:
			ctx.Printf("❌ %s: FAIL\n   Error: %v\n", d.name, err)
			hasError = true
		}
	}

	ctx.Printf("\n")
	if hasError {
		return ErrDiagnosticsFailed
	}
	ctx.Printf("All checks passed.\n")
	return nil
}

func checkStoreReachable(opCtx context.Context, ctx *cli.Context) (map[string]string, error) {
	if ctx.Store == nil {
		return nil, errors.New("no store configured")
	}
	if err := ctx.Store.Load(); err != nil {
		return nil, err
	}
	return ctx.Store.ReadAll(opCtx)
}

func checkGoalData(_ context.Context, ctx *cli.Context, prefs map[string]string) error {
	present := 0
	for _, k := range constants.AllGoalKeys {
		if _, ok := prefs[k]; ok {
			present++
		}
	}
	if present == 0 {
		return nil
	}
	if goalstore.Decode(prefs, time.Now().Format(constants.DateFormat)) == nil {
		return fmt.Errorf("goal keys are present but incomplete or malformed (%s=%q, %s=%q); the goal reads as absent",
			constants.KeyGoalName, prefs[constants.KeyGoalName], constants.KeyTotalDays, prefs[constants.KeyTotalDays])
	}
	return nil
}

func checkMarkedDates(_ context.Context, _ *cli.Context, prefs map[string]string) error {
	raw := prefs[constants.KeyMarkedDates]
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	pieces := 0
	for _, p := range strings.Split(raw, constants.MarkedDatesSeparator) {
		if strings.TrimSpace(p) != "" {
			pieces++
		}
	}
	if valid := goalstore.DecodeMarkedDates(raw).Len(); valid < pieces {
		return fmt.Errorf("%d of %d marked dates are unparseable or duplicated and are ignored", pieces-valid, pieces)
	}
	return nil
}

func checkBackupsPresent(_ context.Context, ctx *cli.Context, _ map[string]string) error {
	if ctx.ConfigDir == "" {
		return errors.New("no config directory, backups disabled")
	}
	list, err := ctx.Backups().ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(list) == 0 {
		return errors.New("no backups found, consider creating one with 'daystreak backup create'")
	}
	return nil
}

func checkClockTimezone(_ context.Context, ctx *cli.Context, _ map[string]string) error {
	now := time.Now()
	if ctx.Clock != nil {
		now = ctx.Clock.Now()
	}
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}

func checkKeyring(context.Context, *cli.Context, map[string]string) error {
	if !keyring.IsAvailable() {
		return keyring.ErrKeyringUnavailable
	}
	return nil
}
