package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	pq "github.com/lib/pq"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/logger"
)

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

func isURL(connStr string) bool {
	return strings.HasPrefix(connStr, constants.SchemePostgres) || strings.HasPrefix(connStr, constants.SchemePostgreSQL)
}

// dsnHasKey reports whether a key=value DSN contains key, case-insensitively.
func dsnHasKey(connStr, key string) bool {
	for _, part := range strings.Fields(connStr) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(strings.TrimSpace(kv[0]), key) {
			return true
		}
	}
	return false
}

// urlHasKey reports whether a URL-style connection string carries key in its
// query, case-insensitively.
func urlHasKey(connStr, key string) bool {
	u, err := url.Parse(connStr)
	if err != nil || u.Scheme == "" {
		return false
	}
	for k := range u.Query() {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

func hasSearchPathParam(connStr string) bool {
	return dsnHasKey(connStr, "search_path")
}

func hasSSLMode(connStr string) bool {
	return urlHasKey(connStr, "sslmode") || dsnHasKey(connStr, "sslmode")
}

// withSearchPath pins the daystreak schema unless the caller chose one.
func withSearchPath(connStr string) string {
	if !isURL(connStr) {
		if hasSearchPathParam(connStr) {
			return connStr
		}
		return strings.TrimSpace(connStr) + " search_path=" + constants.AppName
	}

	u, err := url.Parse(connStr)
	if err != nil {
		logger.Warn("Failed to parse Postgres connection string", "error", err)
		return connStr
	}
	q := u.Query()
	if q.Get("search_path") == "" {
		q.Set("search_path", constants.AppName)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// ValidateConnString checks that connStr is a PostgreSQL URI or DSN and that
// it carries no password. Passwords belong in PGPASSFILE or the environment.
func ValidateConnString(connStr string) (bool, error) {
	if strings.TrimSpace(connStr) == "" {
		return false, fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}

	if _, err := pq.NewConnector(connStr); err != nil {
		return false, fmt.Errorf("%w: invalid connection string format: %v", ErrInvalidConnectionString, err)
	}

	if !isURL(connStr) {
		if dsnHasKey(connStr, "password") {
			return false, ErrEmbeddedCredentials
		}
		return true, nil
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return false, fmt.Errorf("%w: failed to parse connection URL: %v", ErrInvalidConnectionString, err)
	}
	if _, isSet := u.User.Password(); isSet {
		return false, ErrEmbeddedCredentials
	}
	if u.Host == "" && u.User == nil && (u.Path == "" || u.Path == "/") {
		return false, fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
	}
	return true, nil
}

func connectError(connStr string, err error) error {
	if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(connStr) {
		return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
	}
	return fmt.Errorf("failed to connect to database: %w", err)
}
