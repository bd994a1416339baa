package views

import (
	"math"
	"time"

	"github.com/tlind/screentimed/internal/clock"
	"github.com/tlind/screentimed/internal/ledger"
)

// DefaultFocusFraction is the fraction of screen time reported as focus
// time. It is a placeholder heuristic, not a measured quantity.
const DefaultFocusFraction = 0.3

// DayLabeler maps a day-of-week ordinal (Sunday = 0) to a display label.
// Labels come from the localization collaborator; the views never hardcode
// language-specific strings.
type DayLabeler func(ordinal int) string

// WeekEntry is one day of the rolling week.
type WeekEntry struct {
	Day        string  `json:"day"`
	Date       string  `json:"date"`
	ScreenTime float64 `json:"screen_time"`
	FocusTime  float64 `json:"focus_time"`
}

// RollingWeek produces exactly 7 entries, oldest to newest, for the 7
// calendar dates ending at reference inclusive. Dates with no record yield
// zero entries.
func RollingWeek(records map[string]ledger.UsageRecord, reference time.Time, focusFraction float64, label DayLabeler) []WeekEntry {
	if focusFraction <= 0 {
		focusFraction = DefaultFocusFraction
	}

	entries := make([]WeekEntry, 0, 7)
	for i := 6; i >= 0; i-- {
		day := reference.AddDate(0, 0, -i)
		key := clock.DateKey(day)
		screenTime := Round1(records[key].ScreenTimeMinutes)

		entries = append(entries, WeekEntry{
			Day:        label(int(day.Weekday())),
			Date:       key,
			ScreenTime: screenTime,
			FocusTime:  Round1(screenTime * focusFraction),
		})
	}
	return entries
}

// AverageDaily returns the mean screen time across all date keys present,
// or 0 for an empty ledger.
func AverageDaily(records map[string]ledger.UsageRecord) float64 {
	if len(records) == 0 {
		return 0
	}

	var total float64
	for _, record := range records {
		total += record.ScreenTimeMinutes
	}
	return Round1(total / float64(len(records)))
}

// Round1 rounds minutes to one decimal for display.
func Round1(minutes float64) float64 {
	return math.Round(minutes*10) / 10
}
