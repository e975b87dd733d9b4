package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/julianstephens/daystreak/internal/backup"
	"github.com/julianstephens/daystreak/internal/config"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/goalstore"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/notifier"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/storage/natskv"
	"github.com/julianstephens/daystreak/internal/storage/postgres"
	"github.com/julianstephens/daystreak/internal/storage/sqlite"
)

// Context is shared by every command.
type Context struct {
	// Base is cancelled when the process receives an interrupt.
	Base      context.Context
	Config    *config.Config
	ConfigDir string
	Store     storage.Provider
	Goals     *goalstore.Store
	Clock     clockwork.Clock
	Notifier  notifier.Deliverer
	Messages  *notifier.Messages
	In        io.Reader
	Out       io.Writer
}

func NewContext(base context.Context, cfg *config.Config, configDir string, store storage.Provider, deliverer notifier.Deliverer) *Context {
	clock := clockwork.NewRealClock()
	return &Context{
		Base:      base,
		Config:    cfg,
		ConfigDir: configDir,
		Store:     store,
		Goals:     goalstore.New(store, clock),
		Clock:     clock,
		Notifier:  deliverer,
		Messages:  notifier.NewMessages(nil),
		In:        os.Stdin,
		Out:       os.Stdout,
	}
}

// Backups returns the backup manager for the current store.
func (c *Context) Backups() *backup.Manager {
	return backup.NewManager(c.Store, c.ConfigDir, c.Clock)
}

// PerformAutomaticBackup snapshots the goal before a destructive change. A
// failure is logged and never blocks the command.
func (c *Context) PerformAutomaticBackup(ctx context.Context) {
	if c.ConfigDir == "" {
		return
	}
	if _, err := c.Backups().CreateBackup(ctx); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// Timeout derives a context bounded by the configured command timeout.
func (c *Context) Timeout() (context.Context, context.CancelFunc) {
	base := c.Base
	if base == nil {
		base = context.Background()
	}
	timeout := constants.DefaultCommandTimeout
	if c.Config != nil && c.Config.CommandTimeout > 0 {
		timeout = c.Config.CommandTimeout
	}
	return context.WithTimeout(base, timeout)
}

func (c *Context) Printf(format string, args ...any) {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format, args...)
}

// Location is a resolved store location and where it came from.
type Location struct {
	Value string
	// FromKeyring locations may embed credentials; the keyring is encrypted.
	FromKeyring bool
}

// ResolveStore picks the store location: an explicit flag, then a configured
// location, then a connection stored in the keyring, then the default path.
func ResolveStore(flag string, cfg *config.Config) Location {
	if flag != "" {
		return Location{Value: config.ExpandHome(flag)}
	}
	def := config.ExpandHome(constants.DefaultStorePath)
	if cfg != nil && cfg.Store != "" && cfg.Store != def {
		return Location{Value: cfg.Store}
	}
	if v, err := keyring.Get(keyring.StoreConnection); err == nil {
		return Location{Value: v, FromKeyring: true}
	} else if !errors.Is(err, keyring.ErrNotFound) {
		logger.Debug("keyring lookup skipped", "error", err)
	}
	return Location{Value: def}
}

func isPostgres(location string) bool {
	return strings.HasPrefix(location, constants.SchemePostgres) ||
		strings.HasPrefix(location, constants.SchemePostgreSQL) ||
		strings.Contains(location, "host=")
}

// OpenStore builds the provider for loc without connecting to it.
func OpenStore(loc Location) (storage.Provider, error) {
	v := strings.TrimSpace(loc.Value)
	switch {
	case v == "":
		return nil, fmt.Errorf("%w: empty store location", storage.ErrUnsupportedStore)
	case isPostgres(v):
		if _, err := postgres.ValidateConnString(v); err != nil {
			if !errors.Is(err, postgres.ErrEmbeddedCredentials) || !loc.FromKeyring {
				return nil, err
			}
		}
		return postgres.New(v), nil
	case strings.HasPrefix(v, constants.SchemeNATS):
		store, err := natskv.New(v)
		if err != nil {
			return nil, err
		}
		return store, nil
	case strings.Contains(v, "://"):
		return nil, fmt.Errorf("%w: %s", storage.ErrUnsupportedStore, v)
	default:
		return sqlite.NewStore(v), nil
	}
}

// BuildDeliverer assembles the notification sinks enabled in cfg. With none
// enabled, notifications are only logged.
func BuildDeliverer(cfg *config.Config) (notifier.Deliverer, error) {
	if cfg.Notify.DryRun {
		return notifier.DryRun{}, nil
	}

	var sinks notifier.Multi
	if cfg.Notify.Tray {
		sinks = append(sinks, notifier.NewTray())
	}
	if email := cfg.Notify.Email; email.Enabled() {
		apiKey := email.APIKey
		if apiKey == "" {
			v, err := keyring.Get(keyring.ResendAPIKey)
			if err != nil && !errors.Is(err, keyring.ErrNotFound) {
				return nil, err
			}
			apiKey = v
		}
		sink, err := notifier.NewEmail(apiKey, email.From, splitAddresses(email.To))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	if len(sinks) == 0 {
		logger.Warn("no notification sinks enabled, notifications will only be logged")
		return notifier.DryRun{}, nil
	}
	return sinks, nil
}

func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
