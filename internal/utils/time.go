package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
)

// FormatDate formats t as a calendar date (YYYY-MM-DD) in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(constants.DateFormat)
}

// ParseDate parses a date string (YYYY-MM-DD), ignoring surrounding whitespace,
// and returns it in canonical form.
func ParseDate(dateStr string) (string, error) {
	t, err := time.Parse(constants.DateFormat, strings.TrimSpace(dateStr))
	if err != nil {
		return "", err
	}
	return t.Format(constants.DateFormat), nil
}

// ParseTimeOfDay parses a time string (HH:MM) and returns the hour and minute.
func ParseTimeOfDay(timeStr string) (int, int, error) {
	t, err := time.Parse(constants.TimeFormat, timeStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}
	return t.Hour(), t.Minute(), nil
}

// AtTimeOfDay returns hour:minute:00 on the same calendar day as t, in t's location.
func AtTimeOfDay(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

// NextOccurrence returns the next instant after now whose local time-of-day is
// hour:minute. If that time today is not after now, the occurrence is tomorrow.
func NextOccurrence(now time.Time, hour, minute int) time.Time {
	candidate := AtTimeOfDay(now, hour, minute)
	if !candidate.After(now) {
		candidate = AtTimeOfDay(now.AddDate(0, 0, 1), hour, minute)
	}
	return candidate
}

// NextDayAt returns hour:minute one calendar day after t. Calendar arithmetic
// keeps the wall-clock time stable across DST changes, unlike adding 24h.
func NextDayAt(t time.Time, hour, minute int) time.Time {
	return AtTimeOfDay(t.AddDate(0, 0, 1), hour, minute)
}
