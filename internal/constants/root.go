package constants

import "time"

const (
	AppName            = "daystreak"
	DefaultKeyringUser = "database-connection"
	DefaultConfigDir   = "~/.config/daystreak"
	DefaultStorePath   = "~/.config/daystreak/daystreak.db"
	ConfigFileName     = "config.yaml"
	Version            = "v0.1.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// Goal preference keys. These four keys are the whole persisted goal.
	KeyGoalName    = "goal_name"
	KeyTotalDays   = "total_days"
	KeyStartDate   = "start_date"
	KeyMarkedDates = "marked_dates"

	// MarkedDatesSeparator joins marked dates in the persisted value.
	MarkedDatesSeparator = ","

	// Notify constants
	NotifierLockfileName   = "daystreak-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.daystreak"
	TrayExecutablePrefix   = "daystreak-tray"
	TraySecretHeader       = "X-Daystreak-Secret"

	// Store DSN schemes
	SchemePostgres   = "postgres://"
	SchemePostgreSQL = "postgresql://"
	SchemeNATS       = "nats://"

	// NATS KV defaults
	DefaultNATSBucket = "daystreak"
	NATSGoalKey       = "goal"

	// DefaultCommandTimeout bounds a single CLI command's store operations.
	DefaultCommandTimeout = 10 * time.Second

	// MetricsNamespace prefixes every exported Prometheus metric.
	MetricsNamespace = "daystreak"
)

// AllGoalKeys lists every preference key owned by the goal store.
var AllGoalKeys = []string{KeyGoalName, KeyTotalDays, KeyStartDate, KeyMarkedDates}
