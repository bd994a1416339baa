package views

import (
	"strconv"
	"testing"
	"time"

	"github.com/tlind/screentimed/internal/ledger"
	"github.com/tlind/screentimed/internal/locale"
)

var reference = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) // a Friday

func TestRollingWeekZeroFills(t *testing.T) {
	records := map[string]ledger.UsageRecord{
		"2024-03-15": {Date: "2024-03-15", ScreenTimeMinutes: 60},
		"2024-03-13": {Date: "2024-03-13", ScreenTimeMinutes: 30},
	}

	entries := RollingWeek(records, reference, DefaultFocusFraction, locale.EnglishDayLabel)
	if len(entries) != 7 {
		t.Fatalf("expected exactly 7 entries, got %d", len(entries))
	}

	if entries[0].Date != "2024-03-09" {
		t.Fatalf("expected oldest entry first, got %s", entries[0].Date)
	}
	if entries[6].Date != "2024-03-15" {
		t.Fatalf("expected reference date last, got %s", entries[6].Date)
	}

	if entries[6].ScreenTime != 60.0 {
		t.Fatalf("expected 60.0 for reference date, got %v", entries[6].ScreenTime)
	}
	if entries[4].ScreenTime != 30.0 {
		t.Fatalf("expected 30.0 two days back, got %v", entries[4].ScreenTime)
	}
	for _, i := range []int{0, 1, 2, 3, 5} {
		if entries[i].ScreenTime != 0 {
			t.Fatalf("expected zero-filled entry at %d, got %v", i, entries[i].ScreenTime)
		}
	}
}

func TestRollingWeekEmptyLedger(t *testing.T) {
	entries := RollingWeek(nil, reference, DefaultFocusFraction, locale.EnglishDayLabel)
	if len(entries) != 7 {
		t.Fatalf("expected exactly 7 entries for empty ledger, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.ScreenTime != 0 || entry.FocusTime != 0 {
			t.Fatalf("expected zero entry, got %+v", entry)
		}
	}
}

func TestRollingWeekFocusTime(t *testing.T) {
	records := map[string]ledger.UsageRecord{
		"2024-03-15": {Date: "2024-03-15", ScreenTimeMinutes: 100},
	}

	entries := RollingWeek(records, reference, 0.3, locale.EnglishDayLabel)
	if entries[6].FocusTime != 30.0 {
		t.Fatalf("expected focus time 30.0, got %v", entries[6].FocusTime)
	}

	// Zero fraction falls back to the default.
	entries = RollingWeek(records, reference, 0, locale.EnglishDayLabel)
	if entries[6].FocusTime != 30.0 {
		t.Fatalf("expected default fraction, got %v", entries[6].FocusTime)
	}

	entries = RollingWeek(records, reference, 0.5, locale.EnglishDayLabel)
	if entries[6].FocusTime != 50.0 {
		t.Fatalf("expected focus time 50.0, got %v", entries[6].FocusTime)
	}
}

func TestRollingWeekDayLabels(t *testing.T) {
	entries := RollingWeek(nil, reference, DefaultFocusFraction, func(ordinal int) string {
		return strconv.Itoa(ordinal)
	})

	// 2024-03-15 is a Friday, ordinal 5.
	if entries[6].Day != "5" {
		t.Fatalf("expected ordinal 5 for reference day, got %s", entries[6].Day)
	}
	if entries[0].Day != "6" {
		t.Fatalf("expected ordinal 6 for the Saturday six days back, got %s", entries[0].Day)
	}
}

func TestRollingWeekRounding(t *testing.T) {
	records := map[string]ledger.UsageRecord{
		"2024-03-15": {Date: "2024-03-15", ScreenTimeMinutes: 12.3456},
	}

	entries := RollingWeek(records, reference, DefaultFocusFraction, locale.EnglishDayLabel)
	if entries[6].ScreenTime != 12.3 {
		t.Fatalf("expected screen time rounded to one decimal, got %v", entries[6].ScreenTime)
	}
}

func TestAverageDaily(t *testing.T) {
	if avg := AverageDaily(nil); avg != 0 {
		t.Fatalf("empty ledger should average 0, got %v", avg)
	}

	records := map[string]ledger.UsageRecord{
		"2024-03-13": {ScreenTimeMinutes: 10},
		"2024-03-14": {ScreenTimeMinutes: 20},
		"2024-03-15": {ScreenTimeMinutes: 31},
	}
	if avg := AverageDaily(records); avg != 20.3 {
		t.Fatalf("expected average 20.3, got %v", avg)
	}
}
