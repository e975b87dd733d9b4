package goalstore

import (
	"strconv"
	"strings"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/utils"
)

// Encode flattens a goal into its four preference keys. Marked dates are
// written sorted so equal goals always encode identically.
func Encode(g models.Goal) map[string]string {
	return map[string]string{
		constants.KeyGoalName:    g.Name,
		constants.KeyTotalDays:   strconv.Itoa(g.TotalDays),
		constants.KeyStartDate:   g.StartDate,
		constants.KeyMarkedDates: EncodeMarkedDates(g.MarkedDates),
	}
}

func EncodeMarkedDates(dates models.DateSet) string {
	return strings.Join(dates.Sorted(), constants.MarkedDatesSeparator)
}

// Decode rebuilds the goal from prefs, or returns nil when no goal is stored.
// It never fails: a goal needs a name and a numeric day count, a missing or
// unreadable start date becomes today, and unreadable marked dates are dropped.
func Decode(prefs map[string]string, today string) *models.Goal {
	name, ok := prefs[constants.KeyGoalName]
	if !ok {
		return nil
	}
	rawDays, ok := prefs[constants.KeyTotalDays]
	if !ok {
		return nil
	}
	totalDays, err := strconv.Atoi(rawDays)
	if err != nil {
		return nil
	}

	startDate := today
	if raw, ok := prefs[constants.KeyStartDate]; ok {
		if parsed, err := utils.ParseDate(raw); err == nil {
			startDate = parsed
		}
	}

	return &models.Goal{
		Name:        name,
		TotalDays:   totalDays,
		StartDate:   startDate,
		MarkedDates: DecodeMarkedDates(prefs[constants.KeyMarkedDates]),
	}
}

func DecodeMarkedDates(raw string) models.DateSet {
	dates := models.NewDateSet()
	if strings.TrimSpace(raw) == "" {
		return dates
	}
	for _, piece := range strings.Split(raw, constants.MarkedDatesSeparator) {
		if date, err := utils.ParseDate(piece); err == nil {
			dates[date] = struct{}{}
		}
	}
	return dates
}
