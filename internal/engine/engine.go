package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tlind/screentimed/internal/clock"
	"github.com/tlind/screentimed/internal/ledger"
	"github.com/tlind/screentimed/internal/lifecycle"
	"github.com/tlind/screentimed/internal/locale"
	"github.com/tlind/screentimed/internal/metrics"
	"github.com/tlind/screentimed/internal/tracker"
	"github.com/tlind/screentimed/internal/views"
)

// DefaultTickInterval is the cadence of live-estimate ticks while a
// session is open.
const DefaultTickInterval = time.Minute

// Config holds engine configuration
type Config struct {
	TickInterval  time.Duration
	FocusFraction float64
	RetentionDays int
	DayLabeler    views.DayLabeler
}

// UpdateHook is invoked after every change to today's total so the
// consumer layer can react (e.g. dispatch a threshold notification). The
// engine itself never dispatches notifications.
type UpdateHook func(dateKey string, todayMinutes float64)

// Engine owns the session tracker and the ledger and serializes all
// inputs against them: lifecycle transitions, periodic ticks and user
// actions are applied one at a time, in arrival order, under a single
// lock. A tick that fires after the session closed finds the tracker Idle
// and is a guarded no-op, so a session close always supersedes a pending
// tick from the same interval.
type Engine struct {
	cfg     Config
	ledger  *ledger.Ledger
	tracker *tracker.Tracker
	clock   clock.Clock
	source  lifecycle.Source
	logger  zerolog.Logger

	mu          sync.Mutex
	liveMinutes float64
	ticker      *time.Ticker
	tickDone    chan struct{}
	onUpdate    UpdateHook
	unsubscribe func()
}

// New creates an engine. The lifecycle source, gateway-backed ledger and
// clock are injected so the engine is constructible and testable without
// a UI runtime.
func New(led *ledger.Ledger, source lifecycle.Source, clk clock.Clock, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.FocusFraction <= 0 {
		cfg.FocusFraction = views.DefaultFocusFraction
	}
	if cfg.DayLabeler == nil {
		cfg.DayLabeler = locale.EnglishDayLabel
	}

	return &Engine{
		cfg:     cfg,
		ledger:  led,
		tracker: tracker.New(logger),
		clock:   clk,
		source:  source,
		logger:  logger.With().Str("component", "engine").Logger(),
	}
}

// SetUpdateHook registers the consumer-layer hook. Must be called before
// Start.
func (e *Engine) SetUpdateHook(hook UpdateHook) {
	e.onUpdate = hook
}

// Start loads the ledger, prunes records past the retention window and
// subscribes to the lifecycle source.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.ledger.Load(ctx); err != nil {
		return err
	}

	if e.cfg.RetentionDays > 0 {
		cutoff := clock.DateKey(e.clock.Now().AddDate(0, 0, -e.cfg.RetentionDays))
		if _, err := e.ledger.PruneBefore(ctx, cutoff); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to flush after retention prune")
		}
	}

	metrics.LedgerRecords.Set(float64(len(e.ledger.Snapshot())))
	metrics.TrackingActive.Set(0)

	unsubscribe, err := e.source.Subscribe(e.handleLifecycle)
	if err != nil {
		return err
	}
	e.unsubscribe = unsubscribe

	e.logger.Info().Msg("Tracking engine started")
	return nil
}

// Stop unsubscribes from the lifecycle source and disarms the tick timer.
// An open session is dropped; its partial duration is accepted data loss.
func (e *Engine) Stop() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tracker.State() == tracker.Active {
		e.logger.Warn().
			Time("started_at", e.tracker.SessionStart()).
			Msg("Stopping with an open session, partial duration dropped")
	}
	e.disarmTick()
	metrics.TrackingActive.Set(0)

	e.logger.Info().Msg("Tracking engine stopped")
}

func (e *Engine) handleLifecycle(ev lifecycle.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Kind {
	case lifecycle.KindForeground:
		if e.tracker.OnForeground(ev.Timestamp) {
			e.liveMinutes = 0
			e.armTick()
			metrics.TrackingActive.Set(1)
		}
	case lifecycle.KindBackground:
		delta, ok := e.tracker.OnBackground(ev.Timestamp)
		if !ok {
			return
		}
		e.disarmTick()
		e.liveMinutes = 0
		metrics.TrackingActive.Set(0)

		if err := e.ledger.ApplyDelta(context.Background(), delta.DateKey, delta.Minutes, delta.Sessions); err != nil {
			// In-memory state is retained; the next delta's flush
			// persists the superseding full state.
			e.logger.Warn().Err(err).Str("date", delta.DateKey).Msg("Ledger flush failed, will retry on next write")
			metrics.LedgerFlushFailures.Inc()
		}

		metrics.SessionsClosed.Inc()
		metrics.UsageMinutesCommitted.Add(delta.Minutes)
		metrics.LedgerRecords.Set(float64(len(e.ledger.Snapshot())))

		e.fireUpdate()
	}
}

// handleTick applies one periodic tick to the live estimate. The ledger is
// never written here; the full session duration is committed once on
// close.
func (e *Engine) handleTick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	minutes, ok := e.tracker.OnTick(now)
	if !ok {
		return
	}
	e.liveMinutes += minutes

	e.fireUpdate()
}

// fireUpdate must be called with the lock held.
func (e *Engine) fireUpdate() {
	if e.onUpdate == nil {
		return
	}
	today := clock.DateKey(e.clock.Now())
	e.onUpdate(today, e.todayLocked(today))
}

// armTick starts the periodic tick timer; it runs only while a session is
// open and is cancelled on every transition out of Active.
func (e *Engine) armTick() {
	if e.ticker != nil {
		return
	}
	e.ticker = time.NewTicker(e.cfg.TickInterval)
	e.tickDone = make(chan struct{})

	go func(tick *time.Ticker, done chan struct{}) {
		for {
			select {
			case <-done:
				return
			case now := <-tick.C:
				e.handleTick(now)
			}
		}
	}(e.ticker, e.tickDone)
}

func (e *Engine) disarmTick() {
	if e.ticker == nil {
		return
	}
	e.ticker.Stop()
	close(e.tickDone)
	e.ticker = nil
	e.tickDone = nil
}

func (e *Engine) todayLocked(dateKey string) float64 {
	return views.Round1(e.ledger.Get(dateKey).ScreenTimeMinutes + e.liveMinutes)
}

// TodayScreenTime returns today's committed minutes plus the open
// session's accrued-but-uncommitted tick time, rounded to one decimal.
// The ledger stays authoritative; the live part is a read-through cache.
func (e *Engine) TodayScreenTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.todayLocked(clock.DateKey(e.clock.Now()))
}

// IsTracking reports whether an open session exists.
func (e *Engine) IsTracking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.State() == tracker.Active
}

// WeeklyData returns the rolling week ending today, oldest first.
func (e *Engine) WeeklyData() []views.WeekEntry {
	return views.RollingWeek(e.ledger.Snapshot(), e.clock.Now(), e.cfg.FocusFraction, e.cfg.DayLabeler)
}

// AverageDailyScreenTime returns the mean minutes across all recorded
// dates.
func (e *Engine) AverageDailyScreenTime() float64 {
	return views.AverageDaily(e.ledger.Snapshot())
}

// ResetTodayScreenTime zeroes today's committed record. Accrued time of a
// still-open session is untouched and will be committed normally on
// close.
func (e *Engine) ResetTodayScreenTime() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ledger.ResetToday(context.Background()); err != nil {
		e.logger.Warn().Err(err).Msg("Ledger flush failed after reset, will retry on next write")
		metrics.LedgerFlushFailures.Inc()
		return err
	}

	e.fireUpdate()
	return nil
}

// ScreenTimeData returns a snapshot of the raw date-keyed mapping for
// advanced consumers.
func (e *Engine) ScreenTimeData() map[string]ledger.UsageRecord {
	return e.ledger.Snapshot()
}
