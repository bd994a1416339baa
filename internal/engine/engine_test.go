package engine

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tlind/screentimed/internal/clock"
	"github.com/tlind/screentimed/internal/ledger"
	"github.com/tlind/screentimed/internal/lifecycle"
	"github.com/tlind/screentimed/internal/storage/bolt"
)

// fakeSource delivers events synchronously to the subscribed callback.
type fakeSource struct {
	fn           func(lifecycle.Event)
	unsubscribed bool
}

func (s *fakeSource) Subscribe(fn func(lifecycle.Event)) (func(), error) {
	s.fn = fn
	return func() { s.unsubscribed = true }, nil
}

func (s *fakeSource) emit(kind lifecycle.Kind, ts time.Time) {
	s.fn(lifecycle.Event{Kind: kind, Timestamp: ts})
}

func newTestEngine(t *testing.T) (*Engine, *fakeSource, *clock.TestClock) {
	t.Helper()

	gw, err := bolt.Open(filepath.Join(t.TempDir(), "screentimed.bolt"))
	if err != nil {
		t.Fatalf("open gateway: %v", err)
	}
	t.Cleanup(func() { _ = gw.Close() })

	clk := &clock.TestClock{CurrentTime: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	led := ledger.New(gw, "", clk, zerolog.Nop())
	source := &fakeSource{}

	eng := New(led, source, clk, Config{}, zerolog.Nop())
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	t.Cleanup(eng.Stop)

	return eng, source, clk
}

func TestLiveEstimateAndCommit(t *testing.T) {
	eng, source, clk := newTestEngine(t)
	start := clk.Now()
	today := clock.DateKey(start)

	source.emit(lifecycle.KindForeground, start)
	if !eng.IsTracking() {
		t.Fatalf("expected tracking after foreground")
	}

	// One tick: live estimate moves, ledger does not.
	clk.Advance(time.Minute)
	eng.handleTick(clk.Now())

	if got := eng.TodayScreenTime(); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected live estimate of 1.0 minute, got %v", got)
	}
	if committed := eng.ScreenTimeData()[today].ScreenTimeMinutes; committed != 0 {
		t.Fatalf("tick must not write the ledger, got %v committed", committed)
	}

	// Close: the full session duration is committed once, superseding ticks.
	clk.Advance(time.Minute)
	source.emit(lifecycle.KindBackground, clk.Now())

	if eng.IsTracking() {
		t.Fatalf("expected idle after background")
	}
	record := eng.ScreenTimeData()[today]
	if math.Abs(record.ScreenTimeMinutes-2.0) > 1e-9 {
		t.Fatalf("expected 2.0 committed minutes, got %v", record.ScreenTimeMinutes)
	}
	if record.SessionCount != 1 {
		t.Fatalf("expected 1 session, got %d", record.SessionCount)
	}
	if got := eng.TodayScreenTime(); math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("expected today total 2.0 after close, got %v", got)
	}
}

func TestTwoSessionsSameDay(t *testing.T) {
	eng, source, clk := newTestEngine(t)
	today := clock.DateKey(clk.Now())

	source.emit(lifecycle.KindForeground, clk.Now())
	clk.Advance(5 * time.Minute)
	source.emit(lifecycle.KindBackground, clk.Now())

	clk.Advance(time.Hour)
	source.emit(lifecycle.KindForeground, clk.Now())
	clk.Advance(3 * time.Minute)
	source.emit(lifecycle.KindBackground, clk.Now())

	record := eng.ScreenTimeData()[today]
	if math.Abs(record.ScreenTimeMinutes-8.0) > 1e-9 {
		t.Fatalf("expected 8.0 minutes, got %v", record.ScreenTimeMinutes)
	}
	if record.SessionCount != 2 {
		t.Fatalf("expected 2 sessions, got %d", record.SessionCount)
	}
}

func TestDuplicateSignalsProduceNoExtraDelta(t *testing.T) {
	eng, source, clk := newTestEngine(t)
	today := clock.DateKey(clk.Now())

	source.emit(lifecycle.KindForeground, clk.Now())
	clk.Advance(time.Minute)
	source.emit(lifecycle.KindForeground, clk.Now())
	clk.Advance(time.Minute)
	source.emit(lifecycle.KindBackground, clk.Now())
	source.emit(lifecycle.KindBackground, clk.Now())

	record := eng.ScreenTimeData()[today]
	if math.Abs(record.ScreenTimeMinutes-2.0) > 1e-9 {
		t.Fatalf("expected 2.0 minutes from original session, got %v", record.ScreenTimeMinutes)
	}
	if record.SessionCount != 1 {
		t.Fatalf("expected 1 session despite duplicate signals, got %d", record.SessionCount)
	}
}

func TestTickAfterCloseIsNoop(t *testing.T) {
	eng, source, clk := newTestEngine(t)

	source.emit(lifecycle.KindForeground, clk.Now())
	clk.Advance(time.Minute)
	source.emit(lifecycle.KindBackground, clk.Now())

	// A dangling tick against the idle state must change nothing.
	clk.Advance(time.Minute)
	eng.handleTick(clk.Now())

	if got := eng.TodayScreenTime(); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("dangling tick changed today's total: %v", got)
	}
}

func TestResetToday(t *testing.T) {
	eng, source, clk := newTestEngine(t)
	today := clock.DateKey(clk.Now())

	source.emit(lifecycle.KindForeground, clk.Now())
	clk.Advance(8 * time.Minute)
	source.emit(lifecycle.KindBackground, clk.Now())

	if err := eng.ResetTodayScreenTime(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	record := eng.ScreenTimeData()[today]
	if record.ScreenTimeMinutes != 0 || record.SessionCount != 0 {
		t.Fatalf("expected today zeroed, got %+v", record)
	}
	if eng.TodayScreenTime() != 0 {
		t.Fatalf("expected today total 0 after reset, got %v", eng.TodayScreenTime())
	}
}

func TestMidnightCrossingAttribution(t *testing.T) {
	eng, source, clk := newTestEngine(t)

	clk.CurrentTime = time.Date(2024, 3, 15, 23, 50, 0, 0, time.UTC)
	source.emit(lifecycle.KindForeground, clk.Now())

	clk.Advance(20 * time.Minute) // now 2024-03-16 00:10
	source.emit(lifecycle.KindBackground, clk.Now())

	data := eng.ScreenTimeData()
	if math.Abs(data["2024-03-15"].ScreenTimeMinutes-20.0) > 1e-9 {
		t.Fatalf("expected full session on start date, got %v", data["2024-03-15"].ScreenTimeMinutes)
	}
	if _, exists := data["2024-03-16"]; exists {
		t.Fatalf("session spanning midnight must not be split")
	}
}

func TestWeeklyDataAndAverage(t *testing.T) {
	eng, source, clk := newTestEngine(t)

	source.emit(lifecycle.KindForeground, clk.Now())
	clk.Advance(30 * time.Minute)
	source.emit(lifecycle.KindBackground, clk.Now())

	week := eng.WeeklyData()
	if len(week) != 7 {
		t.Fatalf("expected 7 entries, got %d", len(week))
	}
	if week[6].ScreenTime != 30.0 {
		t.Fatalf("expected 30.0 for today, got %v", week[6].ScreenTime)
	}
	if week[6].FocusTime != 9.0 {
		t.Fatalf("expected default 30%% focus estimate, got %v", week[6].FocusTime)
	}

	if avg := eng.AverageDailyScreenTime(); avg != 30.0 {
		t.Fatalf("expected average 30.0 with a single date key, got %v", avg)
	}
}

func TestUpdateHookAndRestartRecovery(t *testing.T) {
	gw, err := bolt.Open(filepath.Join(t.TempDir(), "screentimed.bolt"))
	if err != nil {
		t.Fatalf("open gateway: %v", err)
	}
	defer func() { _ = gw.Close() }()

	clk := &clock.TestClock{CurrentTime: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	source := &fakeSource{}
	eng := New(ledger.New(gw, "", clk, zerolog.Nop()), source, clk, Config{}, zerolog.Nop())

	var lastTotal float64
	eng.SetUpdateHook(func(_ string, todayMinutes float64) {
		lastTotal = todayMinutes
	})

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	source.emit(lifecycle.KindForeground, clk.Now())
	clk.Advance(10 * time.Minute)
	source.emit(lifecycle.KindBackground, clk.Now())

	if math.Abs(lastTotal-10.0) > 1e-9 {
		t.Fatalf("expected hook to observe 10.0 minutes, got %v", lastTotal)
	}

	eng.Stop()
	if !source.unsubscribed {
		t.Fatalf("expected engine to unsubscribe on stop")
	}

	// A restarted engine recovers committed state from the gateway; an open
	// session would simply have been dropped.
	restarted := New(ledger.New(gw, "", clk, zerolog.Nop()), &fakeSource{}, clk, Config{}, zerolog.Nop())
	if err := restarted.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer restarted.Stop()

	if got := restarted.TodayScreenTime(); math.Abs(got-10.0) > 1e-9 {
		t.Fatalf("expected 10.0 minutes after restart, got %v", got)
	}
}
