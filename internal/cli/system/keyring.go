package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/storage/postgres"
)

var secretNames = map[string]keyring.Secret{
	"store":  keyring.StoreConnection,
	"resend": keyring.ResendAPIKey,
}

func lookupSecret(name string) (keyring.Secret, error) {
	s, ok := secretNames[name]
	if !ok {
		return "", fmt.Errorf("unknown secret %q (expected store or resend)", name)
	}
	return s, nil
}

// KeyringSetCmd stores a secret in the OS keyring
type KeyringSetCmd struct {
	Value  string `arg:"" help:"Store connection string (postgres:// or nats://) or Resend API key."`
	Secret string `help:"Which secret to set." enum:"store,resend" default:"store"`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	secret, err := lookupSecret(cmd.Secret)
	if err != nil {
		return err
	}
	if secret == keyring.StoreConnection {
		if err := validateStoreSecret(ctx, cmd.Value); err != nil {
			return err
		}
	}

	if err := keyring.Set(secret, cmd.Value); err != nil {
		return err
	}
	ctx.Printf("✓ %s stored in OS keyring\n", cmd.Secret)
	if secret == keyring.StoreConnection {
		ctx.Printf("  daystreak will use it when no --store flag or DAYSTREAK_STORE is given\n")
	}
	return nil
}

func validateStoreSecret(ctx *cli.Context, value string) error {
	if strings.HasPrefix(value, constants.SchemeNATS) {
		return nil
	}
	if !strings.HasPrefix(value, constants.SchemePostgres) &&
		!strings.HasPrefix(value, constants.SchemePostgreSQL) &&
		!strings.Contains(value, "host=") {
		return errors.New("store secret must be a PostgreSQL connection string or a nats:// URL")
	}

	_, err := postgres.ValidateConnString(value)
	if err == nil {
		return nil
	}
	if errors.Is(err, postgres.ErrEmbeddedCredentials) {
		// Allowed here: the keyring is encrypted.
		ctx.Printf("⚠️  Warning: connection string contains embedded credentials. It will be stored as-is in the OS keyring.\n")
		return nil
	}
	return fmt.Errorf("invalid connection string: %w", err)
}

// KeyringDeleteCmd removes a secret from the OS keyring
type KeyringDeleteCmd struct {
	Secret string `help:"Which secret to delete." enum:"store,resend" default:"store"`
}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	secret, err := lookupSecret(cmd.Secret)
	if err != nil {
		return err
	}
	if err := keyring.Delete(secret); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no %s secret found in keyring", cmd.Secret)
		}
		return err
	}
	ctx.Printf("✓ %s deleted from OS keyring\n", cmd.Secret)
	return nil
}

// KeyringStatusCmd reports keyring availability and which secrets are stored
type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		ctx.Printf("❌ OS keyring is not available on this system\n")
		return keyring.ErrKeyringUnavailable
	}
	ctx.Printf("✓ OS keyring is available\n")

	if v, err := keyring.Get(keyring.StoreConnection); err == nil {
		ctx.Printf("✓ store: %s\n", maskPassword(v))
	} else {
		ctx.Printf("ℹ store: not set\n")
	}
	if _, err := keyring.Get(keyring.ResendAPIKey); err == nil {
		ctx.Printf("✓ resend: set\n")
	} else {
		ctx.Printf("ℹ resend: not set\n")
	}
	return nil
}

// maskPassword masks passwords in connection strings for display
func maskPassword(connStr string) string {
	if idx := strings.Index(connStr, "://"); idx != -1 {
		remaining := connStr[idx+3:]
		// The last @ separates user info from host.
		if atIdx := strings.LastIndex(remaining, "@"); atIdx != -1 {
			userInfo := remaining[:atIdx]
			if colonIdx := strings.Index(userInfo, ":"); colonIdx != -1 {
				return connStr[:idx+3] + userInfo[:colonIdx] + ":****" + connStr[idx+3+atIdx:]
			}
		}
		return connStr
	}

	if strings.Contains(connStr, "password=") {
		parts := strings.Fields(connStr)
		for i, part := range parts {
			if strings.HasPrefix(part, "password=") {
				parts[i] = "password=****"
			}
		}
		return strings.Join(parts, " ")
	}
	return connStr
}
