package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
)

// DateSet is a set of calendar dates in YYYY-MM-DD format.
type DateSet map[string]struct{}

// NewDateSet builds a set from the given dates. Duplicates collapse.
func NewDateSet(dates ...string) DateSet {
	set := make(DateSet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// Has reports whether date is in the set.
func (s DateSet) Has(date string) bool {
	_, ok := s[date]
	return ok
}

// Add returns a copy of the set with date included. The receiver is not modified.
func (s DateSet) Add(date string) DateSet {
	out := make(DateSet, len(s)+1)
	for d := range s {
		out[d] = struct{}{}
	}
	out[date] = struct{}{}
	return out
}

func (s DateSet) Len() int {
	return len(s)
}

// Sorted returns the dates in ascending order.
func (s DateSet) Sorted() []string {
	dates := make([]string, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Equal reports set equality; order never matters.
func (s DateSet) Equal(other DateSet) bool {
	if len(s) != len(other) {
		return false
	}
	for d := range s {
		if !other.Has(d) {
			return false
		}
	}
	return true
}

// Goal is an immutable snapshot of the single tracked goal.
type Goal struct {
	Name        string  `json:"name"`
	TotalDays   int     `json:"total_days"`
	StartDate   string  `json:"start_date"` // YYYY-MM-DD format
	MarkedDates DateSet `json:"marked_dates"`
}

// NewGoal creates a goal starting on startDate with nothing marked.
func NewGoal(name string, totalDays int, startDate string) Goal {
	return Goal{
		Name:        name,
		TotalDays:   totalDays,
		StartDate:   startDate,
		MarkedDates: DateSet{},
	}
}

// Validate applies the creation-time rules. The store never calls it.
func (g *Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("goal name cannot be empty")
	}
	if g.TotalDays <= 0 {
		return fmt.Errorf("total days must be positive, got %d", g.TotalDays)
	}
	if _, err := time.Parse(constants.DateFormat, g.StartDate); err != nil {
		return fmt.Errorf("invalid start date format (expected YYYY-MM-DD): %w", err)
	}
	return nil
}

// Progress is the marked fraction of the target. It is not clamped, so marking
// more days than TotalDays yields a value above 1.
func (g *Goal) Progress() float64 {
	if g.TotalDays <= 0 {
		return 0
	}
	return float64(g.MarkedDates.Len()) / float64(g.TotalDays)
}

// ProgressPercent is floor(Progress * 100) computed in integers.
func (g *Goal) ProgressPercent() int {
	if g.TotalDays <= 0 {
		return 0
	}
	return g.MarkedDates.Len() * 100 / g.TotalDays
}

func (g *Goal) DaysCompleted() int {
	return g.MarkedDates.Len()
}

// DaysRemaining returns how many more marks reach the target, never below zero.
func (g *Goal) DaysRemaining() int {
	remaining := g.TotalDays - g.MarkedDates.Len()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsMarked reports whether progress was recorded on date (YYYY-MM-DD).
func (g *Goal) IsMarked(date string) bool {
	return g.MarkedDates.Has(date)
}

// WithMarked returns a copy of the goal with date added to its marked dates.
func (g Goal) WithMarked(date string) Goal {
	g.MarkedDates = g.MarkedDates.Add(date)
	return g
}

// Equal compares every field, treating marked dates as a set.
func (g *Goal) Equal(other *Goal) bool {
	if g == nil || other == nil {
		return g == other
	}
	return g.Name == other.Name &&
		g.TotalDays == other.TotalDays &&
		g.StartDate == other.StartDate &&
		g.MarkedDates.Equal(other.MarkedDates)
}
