// Package config resolves daystreak settings from defaults, an optional YAML
// file, .env files and DAYSTREAK_* environment variables, in that order of
// increasing precedence. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/logger"
)

// Environment variables read by Load.
const (
	EnvStore          = "DAYSTREAK_STORE"
	EnvDebug          = "DAYSTREAK_DEBUG"
	EnvMetricsAddr    = "DAYSTREAK_METRICS_ADDR"
	EnvNATSURL        = "DAYSTREAK_NATS_URL"
	EnvCommandTimeout = "DAYSTREAK_COMMAND_TIMEOUT"
	EnvResendAPIKey   = "DAYSTREAK_RESEND_API_KEY"
	EnvEmailFrom      = "DAYSTREAK_EMAIL_FROM"
	EnvEmailTo        = "DAYSTREAK_EMAIL_TO"
	EnvNotifyTray     = "DAYSTREAK_NOTIFY_TRAY"
	EnvNotifyDryRun   = "DAYSTREAK_NOTIFY_DRY_RUN"
)

type Config struct {
	// Store is a SQLite path, a postgres:// connection string or a nats:// URL.
	Store          string        `yaml:"store"`
	Debug          bool          `yaml:"debug"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	Notify         NotifyConfig  `yaml:"notify"`
}

type NotifyConfig struct {
	Tray   bool        `yaml:"tray"`
	DryRun bool        `yaml:"dry_run"`
	Email  EmailConfig `yaml:"email"`
}

type EmailConfig struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	APIKey string `yaml:"api_key"`
}

// Enabled reports whether enough is configured to send mail. The API key may
// still come from the keyring.
func (e EmailConfig) Enabled() bool {
	return e.From != "" && e.To != ""
}

func Default() *Config {
	return &Config{
		Store:          constants.DefaultStorePath,
		CommandTimeout: constants.DefaultCommandTimeout,
		Notify:         NotifyConfig{Tray: true},
	}
}

// Load builds the configuration for configDir. A missing config file or .env
// file is not an error; a malformed one is.
func Load(configDir string) (*Config, error) {
	configDir = ExpandHome(configDir)
	if err := loadDotenv(filepath.Join(configDir, ".env"), ".env"); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := cfg.loadFile(filepath.Join(configDir, constants.ConfigFileName)); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.Store = ExpandHome(cfg.Store)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Store) == "" {
		return errors.New("store location cannot be empty")
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive, got %s", c.CommandTimeout)
	}
	if (c.Notify.Email.From == "") != (c.Notify.Email.To == "") {
		return errors.New("email notifications need both a from and a to address")
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	// An explicit store wins over the NATS shorthand.
	if v := os.Getenv(EnvNATSURL); v != "" {
		c.Store = v
	}
	c.Store = envString(EnvStore, c.Store)
	c.Debug = envBool(EnvDebug, c.Debug)
	c.MetricsAddr = envString(EnvMetricsAddr, c.MetricsAddr)
	c.CommandTimeout = envDuration(EnvCommandTimeout, c.CommandTimeout)
	c.Notify.Tray = envBool(EnvNotifyTray, c.Notify.Tray)
	c.Notify.DryRun = envBool(EnvNotifyDryRun, c.Notify.DryRun)
	c.Notify.Email.APIKey = envString(EnvResendAPIKey, c.Notify.Email.APIKey)
	c.Notify.Email.From = envString(EnvEmailFrom, c.Notify.Email.From)
	c.Notify.Email.To = envString(EnvEmailTo, c.Notify.Email.To)
}

// loadDotenv loads each existing file without overriding variables that are
// already set.
func loadDotenv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		logger.Debug("loaded env file", "path", p)
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
