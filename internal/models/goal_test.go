package models

import (
	"reflect"
	"testing"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
)

func TestGoalProgress(t *testing.T) {
	tests := []struct {
		name        string
		totalDays   int
		marked      []string
		wantPercent int
		wantDone    int
	}{
		{
			name:        "one of thirty",
			totalDays:   30,
			marked:      []string{"2024-01-01"},
			wantPercent: 3,
			wantDone:    1,
		},
		{
			name:        "nothing marked",
			totalDays:   10,
			marked:      nil,
			wantPercent: 0,
			wantDone:    0,
		},
		{
			name:        "exact integer percent",
			totalDays:   100,
			marked:      makeDates(29),
			wantPercent: 29,
			wantDone:    29,
		},
		{
			name:        "complete",
			totalDays:   3,
			marked:      []string{"2024-01-01", "2024-01-02", "2024-01-03"},
			wantPercent: 100,
			wantDone:    3,
		},
		{
			name:        "over-marked is not clamped",
			totalDays:   2,
			marked:      []string{"2024-01-01", "2024-01-02", "2024-01-03"},
			wantPercent: 150,
			wantDone:    3,
		},
		{
			name:        "non-positive total days",
			totalDays:   0,
			marked:      []string{"2024-01-01"},
			wantPercent: 0,
			wantDone:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Goal{Name: "Read", TotalDays: tt.totalDays, StartDate: "2024-01-01", MarkedDates: NewDateSet(tt.marked...)}
			if got := g.ProgressPercent(); got != tt.wantPercent {
				t.Errorf("ProgressPercent() = %d, want %d", got, tt.wantPercent)
			}
			if got := g.DaysCompleted(); got != tt.wantDone {
				t.Errorf("DaysCompleted() = %d, want %d", got, tt.wantDone)
			}
		})
	}
}

func TestGoalProgressFraction(t *testing.T) {
	g := Goal{Name: "Run", TotalDays: 4, StartDate: "2024-01-01", MarkedDates: NewDateSet("2024-01-01")}
	if got := g.Progress(); got != 0.25 {
		t.Errorf("Progress() = %v, want 0.25", got)
	}

	over := Goal{Name: "Run", TotalDays: 1, StartDate: "2024-01-01", MarkedDates: NewDateSet("2024-01-01", "2024-01-02")}
	if got := over.Progress(); got != 2 {
		t.Errorf("Progress() = %v, want 2", got)
	}
	if got := over.DaysRemaining(); got != 0 {
		t.Errorf("DaysRemaining() = %d, want 0", got)
	}
}

func TestGoalValidate(t *testing.T) {
	tests := []struct {
		name    string
		goal    Goal
		wantErr bool
	}{
		{"valid", NewGoal("Read", 30, "2024-01-01"), false},
		{"blank name", NewGoal("   ", 30, "2024-01-01"), true},
		{"zero days", NewGoal("Read", 0, "2024-01-01"), true},
		{"negative days", NewGoal("Read", -3, "2024-01-01"), true},
		{"bad start date", NewGoal("Read", 30, "01/01/2024"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.goal.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDateSet(t *testing.T) {
	s := NewDateSet("2024-01-03", "2024-01-01", "2024-01-01")
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	added := s.Add("2024-01-02")
	if s.Has("2024-01-02") {
		t.Error("Add() modified the receiver")
	}
	if !added.Has("2024-01-02") || added.Len() != 3 {
		t.Errorf("Add() = %v, want 3 dates including 2024-01-02", added.Sorted())
	}

	want := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	if got := added.Sorted(); !reflect.DeepEqual(got, want) {
		t.Errorf("Sorted() = %v, want %v", got, want)
	}

	if !added.Equal(NewDateSet("2024-01-02", "2024-01-03", "2024-01-01")) {
		t.Error("Equal() should ignore order")
	}
	if added.Equal(s) {
		t.Error("Equal() should differ on size")
	}
}

func TestGoalWithMarkedAndEqual(t *testing.T) {
	g := NewGoal("Read", 30, "2024-01-01")
	marked := g.WithMarked("2024-01-05")

	if g.IsMarked("2024-01-05") {
		t.Error("WithMarked() modified the original goal")
	}
	if !marked.IsMarked("2024-01-05") {
		t.Error("WithMarked() result is missing the date")
	}
	if g.Equal(&marked) {
		t.Error("Equal() = true for goals with different marks")
	}

	var nilGoal *Goal
	if !nilGoal.Equal(nil) {
		t.Error("nil goals should be equal")
	}
	if nilGoal.Equal(&g) {
		t.Error("nil and non-nil goals should differ")
	}
}

func makeDates(n int) []string {
	dates := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		month := 1 + (i-1)/28
		day := 1 + (i-1)%28
		dates = append(dates, formatDate(2024, month, day))
	}
	return dates
}

func formatDate(year, month, day int) string {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format(constants.DateFormat)
}
