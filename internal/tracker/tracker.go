package tracker

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/tlind/screentimed/internal/clock"
)

// State is the session state machine state.
type State int

const (
	// Idle means no open session exists.
	Idle State = iota
	// Active means exactly one open session exists.
	Active
)

// String returns the state name for logging.
func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Delta is one committed session's contribution to the ledger.
type Delta struct {
	DateKey  string
	Minutes  float64
	Sessions int
}

// Tracker is the single open/closed session state machine. It holds no
// persisted state: an open session that never sees a background transition
// before restart is dropped, its partial duration lost.
//
// The tracker is not safe for concurrent use; the engine serializes all
// signals against it.
type Tracker struct {
	state    State
	start    time.Time
	lastTick time.Time
	armed    bool
	logger   zerolog.Logger
}

// New creates a tracker in the Idle state.
func New(logger zerolog.Logger) *Tracker {
	return &Tracker{
		logger: logger.With().Str("component", "session-tracker").Logger(),
	}
}

// OnForeground opens a session at ts and arms the tick timer. A duplicate
// foreground signal while already Active is a no-op; the existing session
// continues.
func (t *Tracker) OnForeground(ts time.Time) bool {
	if t.state == Active {
		t.logger.Debug().Time("timestamp", ts).Msg("Duplicate foreground signal ignored")
		return false
	}

	t.state = Active
	t.start = ts
	t.lastTick = ts
	t.armed = true

	t.logger.Info().Time("started_at", ts).Msg("Session opened")
	return true
}

// OnBackground closes the open session at ts, disarms the tick timer and
// returns the committed delta. The whole session is attributed to the
// calendar date of its start, even across midnight; a negative duration
// from clock skew is clamped to zero. A background signal while Idle is a
// no-op.
func (t *Tracker) OnBackground(ts time.Time) (Delta, bool) {
	if t.state == Idle {
		t.logger.Debug().Time("timestamp", ts).Msg("Background signal while idle ignored")
		return Delta{}, false
	}

	minutes := ts.Sub(t.start).Minutes()
	if minutes < 0 {
		t.logger.Warn().
			Time("started_at", t.start).
			Time("ended_at", ts).
			Msg("Negative session duration clamped to zero")
		minutes = 0
	}

	delta := Delta{
		DateKey:  clock.DateKey(t.start),
		Minutes:  minutes,
		Sessions: 1,
	}

	t.state = Idle
	t.armed = false

	t.logger.Info().
		Str("date", delta.DateKey).
		Float64("minutes", delta.Minutes).
		Msg("Session closed")

	return delta, true
}

// OnTick returns the minutes elapsed since the previous tick (or since the
// session start for the first tick). The value only feeds the live
// estimate; the full session duration is committed once on close,
// superseding the sum of ticks. A tick while Idle is a guarded no-op.
func (t *Tracker) OnTick(ts time.Time) (float64, bool) {
	if t.state == Idle {
		return 0, false
	}

	minutes := ts.Sub(t.lastTick).Minutes()
	if minutes < 0 {
		minutes = 0
	}
	t.lastTick = ts

	return minutes, true
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// Armed reports whether the tick timer should be running. It changes only
// on state transitions.
func (t *Tracker) Armed() bool {
	return t.armed
}

// SessionStart returns the open session's start time. Only meaningful
// while Active.
func (t *Tracker) SessionStart() time.Time {
	return t.start
}
