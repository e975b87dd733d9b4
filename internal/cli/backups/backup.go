package backups

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianstephens/daystreak/internal/backup"
	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/constants"
)

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	opCtx, cancel := ctx.Timeout()
	defer cancel()

	path, err := ctx.Backups().CreateBackup(opCtx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	ctx.Printf("✓ Backup created: %s\n", filepath.Base(path))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr := ctx.Backups()
	list, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(list) == 0 {
		ctx.Printf("No backups found.\nBackups are stored in: %s\n", mgr.GetBackupDir())
		return nil
	}

	ctx.Printf("Available backups (%d total, keeping most recent %d):\n\n", len(list), backup.MaxBackups)
	for _, b := range list {
		ctx.Printf("  %s  %s  (%d bytes)\n", b.Timestamp.Format("2006-01-02 15:04:05"), filepath.Base(b.Path), b.Size)
	}
	ctx.Printf("\nBackup directory: %s\n", mgr.GetBackupDir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" optional:"" help:"Path or filename of the backup to restore. Defaults to the newest."`
	Yes        bool   `help:"Skip the confirmation prompt." short:"y"`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr := ctx.Backups()

	path, err := c.resolve(mgr)
	if err != nil {
		return err
	}

	snap, err := backup.ReadSnapshot(path)
	if err != nil {
		return err
	}
	name := snap.Goal[constants.KeyGoalName]
	if name == "" {
		name = "(no goal)"
	}

	if !c.Yes {
		ctx.Printf("⚠️  This will replace the current goal with %s from %s.\n", name, filepath.Base(path))
		ctx.Printf("A backup of the current goal will be created first.\nContinue? [y/N]: ")
		in := ctx.In
		if in == nil {
			in = os.Stdin
		}
		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			ctx.Printf("Restore cancelled.\n")
			return nil
		}
	}

	opCtx, cancel := ctx.Timeout()
	defer cancel()
	if err := mgr.RestoreBackup(opCtx, path); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	ctx.Printf("✓ Goal restored from %s\n", filepath.Base(path))
	return nil
}

// resolve accepts an absolute path, a path relative to the working
// directory, or a file name inside the backup directory.
func (c *BackupRestoreCmd) resolve(mgr *backup.Manager) (string, error) {
	if c.BackupFile == "" {
		list, err := mgr.ListBackups()
		if err != nil {
			return "", err
		}
		if len(list) == 0 {
			return "", fmt.Errorf("no backups found in %s", mgr.GetBackupDir())
		}
		return list[0].Path, nil
	}

	if filepath.IsAbs(c.BackupFile) {
		if _, err := os.Stat(c.BackupFile); err != nil {
			return "", fmt.Errorf("backup file not found: %s", c.BackupFile)
		}
		return c.BackupFile, nil
	}
	if _, err := os.Stat(c.BackupFile); err == nil {
		return filepath.Abs(c.BackupFile)
	}
	candidate := filepath.Join(mgr.GetBackupDir(), c.BackupFile)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", fmt.Errorf("backup file not found: tried current directory and %s", mgr.GetBackupDir())
}
