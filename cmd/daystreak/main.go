package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/cli/backups"
	"github.com/julianstephens/daystreak/internal/cli/goals"
	"github.com/julianstephens/daystreak/internal/cli/system"
	"github.com/julianstephens/daystreak/internal/config"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/logger"
)

var CLI struct {
	Version   kong.VersionFlag
	Store     string `help:"SQLite path, PostgreSQL connection string or nats:// URL. PostgreSQL credentials must NOT be embedded; use .pgpass, the environment or 'daystreak keyring set'."`
	ConfigDir string `help:"Directory holding config.yaml, .env and logs." type:"path" default:"~/.config/daystreak"`
	Debug     bool   `help:"Enable debug logging."`

	Init system.InitCmd `cmd:"" help:"Initialize daystreak storage."`
	Goal struct {
		Create goals.CreateCmd `cmd:"" help:"Create the goal to track."`
		Mark   goals.MarkCmd   `cmd:"" help:"Mark today as done."`
		Status goals.StatusCmd `cmd:"" help:"Show goal progress." default:"1"`
		Delete goals.DeleteCmd `cmd:"" help:"Delete the goal."`
	} `cmd:"" help:"Manage the tracked goal."`
	Backup struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Snapshot the goal to a backup file."`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups." default:"1"`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore the goal from a backup."`
	} `cmd:"" help:"Manage goal backups."`
	Doctor  system.DoctorCmd `cmd:"" help:"Run health checks on storage and configuration."`
	Daemon  system.DaemonCmd `cmd:"" help:"Run the daily reminder scheduler."`
	Keyring struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store a secret in the OS keyring."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove a secret from the OS keyring."`
		Status system.KeyringStatusCmd `cmd:"" help:"Check OS keyring availability." default:"1"`
	} `cmd:"" help:"Manage secrets in the OS keyring."`
	Notify system.NotifyCmd `cmd:"" hidden:"" help:"Send a notification (used internally)."`
}

// needsStore reports whether the selected command reads or writes the goal.
func needsStore(command string) bool {
	switch strings.Fields(command)[0] {
	case "keyring", "notify":
		return false
	default:
		return true
	}
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Track one goal a day at a time, with daily reminders"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	cfg, err := config.Load(CLI.ConfigDir)
	if err != nil {
		errors.Fatal(err)
	}
	if CLI.Debug {
		cfg.Debug = true
	}

	command := kctx.Command()
	if err := logger.Init(logger.Config{
		Debug:      cfg.Debug,
		ConfigDir:  config.ExpandHome(CLI.ConfigDir),
		Foreground: strings.HasPrefix(command, "daemon"),
	}); err != nil {
		errors.Fatal(err)
	}

	deliverer, err := cli.BuildDeliverer(cfg)
	if err != nil {
		errors.Fatal(err)
	}

	base, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc := cli.ResolveStore(CLI.Store, cfg)
	store, err := cli.OpenStore(loc)
	if err != nil && needsStore(command) {
		if command != "doctor" {
			errors.Fatal(err)
		}
		logger.Warn("failed to open store", "error", err)
	}

	appCtx := cli.NewContext(base, cfg, config.ExpandHome(CLI.ConfigDir), store, deliverer)

	// Init and doctor handle their own setup.
	if needsStore(command) && command != "init" && command != "doctor" {
		if err := store.Load(); err != nil {
			errors.Fatal(err)
		}
	}

	err = kctx.Run(appCtx)
	if store != nil {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("failed to close store", "error", closeErr)
		}
	}
	stop()
	errors.Fatal(err)
}
