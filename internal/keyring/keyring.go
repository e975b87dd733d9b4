// Package keyring keeps daystreak secrets in the OS keyring so they never
// have to appear in a config file or connection string.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/daystreak/internal/constants"
)

// Secret names a value stored under the daystreak keyring service.
type Secret string

const (
	// StoreConnection is the PostgreSQL or NATS location of the goal store.
	StoreConnection Secret = constants.DefaultKeyringUser
	// ResendAPIKey authenticates the email notification sink.
	ResendAPIKey Secret = "resend-api-key"
)

var (
	// ErrNotFound is returned when the secret is not stored.
	ErrNotFound = errors.New("secret not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available.
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Get returns the stored value of s.
func Get(s Secret) (string, error) {
	v, err := keyring.Get(constants.AppName, string(s))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func Set(s Secret, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", s)
	}
	if err := keyring.Set(constants.AppName, string(s), value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", s, err)
	}
	return nil
}

func Delete(s Secret) error {
	if err := keyring.Delete(constants.AppName, string(s)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", s, err)
	}
	return nil
}

// IsAvailable probes the keyring with a read. A not-found answer still
// means the keyring works.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
