package goalstore

import (
	"testing"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
)

const today = "2024-05-20"

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		prefs map[string]string
		want  *models.Goal
	}{
		{
			name:  "empty store",
			prefs: map[string]string{},
			want:  nil,
		},
		{
			name:  "missing total days",
			prefs: map[string]string{constants.KeyGoalName: "Read"},
			want:  nil,
		},
		{
			name:  "missing name",
			prefs: map[string]string{constants.KeyTotalDays: "30"},
			want:  nil,
		},
		{
			name:  "non-numeric total days",
			prefs: map[string]string{constants.KeyGoalName: "Read", constants.KeyTotalDays: "thirty"},
			want:  nil,
		},
		{
			name: "missing start date defaults to today",
			prefs: map[string]string{
				constants.KeyGoalName:  "Read",
				constants.KeyTotalDays: "30",
			},
			want: &models.Goal{Name: "Read", TotalDays: 30, StartDate: today, MarkedDates: models.NewDateSet()},
		},
		{
			name: "unparseable start date defaults to today",
			prefs: map[string]string{
				constants.KeyGoalName:  "Read",
				constants.KeyTotalDays: "30",
				constants.KeyStartDate: "yesterday",
			},
			want: &models.Goal{Name: "Read", TotalDays: 30, StartDate: today, MarkedDates: models.NewDateSet()},
		},
		{
			name: "bad marked entries are dropped",
			prefs: map[string]string{
				constants.KeyGoalName:    "Read",
				constants.KeyTotalDays:   "30",
				constants.KeyStartDate:   "2024-01-01",
				constants.KeyMarkedDates: "2024-01-01,not-a-date,2024-01-03",
			},
			want: &models.Goal{
				Name:        "Read",
				TotalDays:   30,
				StartDate:   "2024-01-01",
				MarkedDates: models.NewDateSet("2024-01-01", "2024-01-03"),
			},
		},
		{
			name: "whitespace around marked entries",
			prefs: map[string]string{
				constants.KeyGoalName:    "Read",
				constants.KeyTotalDays:   "30",
				constants.KeyStartDate:   "2024-01-01",
				constants.KeyMarkedDates: " 2024-01-02 , ,2024-01-02",
			},
			want: &models.Goal{
				Name:        "Read",
				TotalDays:   30,
				StartDate:   "2024-01-01",
				MarkedDates: models.NewDateSet("2024-01-02"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.prefs, today)
			if !got.Equal(tt.want) {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeTwoValidDates(t *testing.T) {
	got := DecodeMarkedDates("2024-01-01,not-a-date,2024-01-03")
	if got.Len() != 2 || !got.Has("2024-01-01") || !got.Has("2024-01-03") {
		t.Errorf("DecodeMarkedDates() = %v, want {2024-01-01, 2024-01-03}", got.Sorted())
	}
}

func TestEncode(t *testing.T) {
	g := models.Goal{
		Name:        "Read",
		TotalDays:   30,
		StartDate:   "2024-01-01",
		MarkedDates: models.NewDateSet("2024-01-03", "2024-01-01"),
	}

	got := Encode(g)
	want := map[string]string{
		constants.KeyGoalName:    "Read",
		constants.KeyTotalDays:   "30",
		constants.KeyStartDate:   "2024-01-01",
		constants.KeyMarkedDates: "2024-01-01,2024-01-03",
	}
	if len(got) != len(want) {
		t.Fatalf("Encode() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Encode()[%s] = %q, want %q", k, got[k], v)
		}
	}

	if back := Decode(got, today); !back.Equal(&g) {
		t.Errorf("Decode(Encode()) = %+v, want %+v", back, g)
	}
}

func TestEncodeNoMarks(t *testing.T) {
	got := Encode(models.NewGoal("Read", 30, "2024-01-01"))
	if got[constants.KeyMarkedDates] != "" {
		t.Errorf("marked_dates = %q, want empty", got[constants.KeyMarkedDates])
	}
}
