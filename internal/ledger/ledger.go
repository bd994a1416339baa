package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tlind/screentimed/internal/clock"
	"github.com/tlind/screentimed/internal/storage"
)

// DefaultStorageKey is the gateway key the serialized ledger lives under.
const DefaultStorageKey = "screen_time_data"

// UsageRecord holds the accumulated usage for one calendar date.
// ScreenTimeMinutes never decreases except through ResetToday, and
// every mutation bumps LastUpdated.
type UsageRecord struct {
	Date              string    `json:"date"`
	ScreenTimeMinutes float64   `json:"screen_time_minutes"`
	SessionCount      int       `json:"session_count"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Ledger owns the authoritative mapping of date key to usage record.
// Mutations are applied in memory first and then written through to the
// gateway as one serialized blob; a failed flush never rolls back the
// in-memory state, so an already-experienced session is never lost.
type Ledger struct {
	gateway storage.Gateway
	key     string
	clock   clock.Clock
	logger  zerolog.Logger

	mu      sync.RWMutex
	records map[string]UsageRecord
}

// New creates a ledger backed by the given gateway. The ledger is the
// gateway's sole writer for its key.
func New(gateway storage.Gateway, key string, clk clock.Clock, logger zerolog.Logger) *Ledger {
	if key == "" {
		key = DefaultStorageKey
	}
	return &Ledger{
		gateway: gateway,
		key:     key,
		clock:   clk,
		logger:  logger.With().Str("component", "ledger").Logger(),
		records: make(map[string]UsageRecord),
	}
}

// Load replaces the in-memory mapping with the persisted blob. A missing
// or corrupt blob initializes an empty ledger instead of failing; losing
// stale data is preferred over refusing to track.
func (l *Ledger) Load(ctx context.Context) error {
	blob, err := l.gateway.Get(ctx, l.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			l.logger.Warn().Err(err).Str("key", l.key).Msg("Failed to read persisted ledger, starting empty")
		}
		l.mu.Lock()
		l.records = make(map[string]UsageRecord)
		l.mu.Unlock()
		return nil
	}

	records := make(map[string]UsageRecord)
	if err := json.Unmarshal([]byte(blob), &records); err != nil {
		l.logger.Warn().Err(err).Str("key", l.key).Msg("Corrupt ledger blob, starting empty")
		records = make(map[string]UsageRecord)
	}

	l.mu.Lock()
	l.records = records
	l.mu.Unlock()

	l.logger.Debug().Int("records", len(records)).Msg("Ledger loaded")
	return nil
}

// Flush serializes the full mapping and writes it through to the gateway.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.RLock()
	data, err := json.Marshal(l.records)
	l.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if err := l.gateway.Set(ctx, l.key, string(data)); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}

// ApplyDelta adds a committed session delta to the record for dateKey,
// creating it zero-initialized if absent, then flushes. On flush failure
// the in-memory mutation is retained and the error is returned so the
// caller can surface it; a later flush of the superseding full state heals
// transient failures.
func (l *Ledger) ApplyDelta(ctx context.Context, dateKey string, minutes float64, sessionIncrement int) error {
	if minutes < 0 {
		minutes = 0
	}

	l.mu.Lock()
	record := l.records[dateKey]
	record.Date = dateKey
	record.ScreenTimeMinutes += minutes
	record.SessionCount += sessionIncrement
	record.LastUpdated = l.clock.Now()
	l.records[dateKey] = record
	l.mu.Unlock()

	l.logger.Debug().
		Str("date", dateKey).
		Float64("minutes", minutes).
		Int("sessions", sessionIncrement).
		Float64("total_minutes", record.ScreenTimeMinutes).
		Msg("Applied usage delta")

	return l.Flush(ctx)
}

// Get returns the record for dateKey, or a zero-value record if absent.
func (l *Ledger) Get(dateKey string) UsageRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if record, ok := l.records[dateKey]; ok {
		return record
	}
	return UsageRecord{Date: dateKey}
}

// ResetToday zeroes the current date key's minutes and session count,
// preserving the key, then flushes. Other date keys are untouched, as is
// any accrued-but-uncommitted time of a still-open session.
func (l *Ledger) ResetToday(ctx context.Context) error {
	now := l.clock.Now()
	dateKey := clock.DateKey(now)

	l.mu.Lock()
	record := l.records[dateKey]
	record.Date = dateKey
	record.ScreenTimeMinutes = 0
	record.SessionCount = 0
	record.LastUpdated = now
	l.records[dateKey] = record
	l.mu.Unlock()

	l.logger.Info().Str("date", dateKey).Msg("Reset today's usage")

	return l.Flush(ctx)
}

// Snapshot returns a copy of the current mapping for read-only views.
func (l *Ledger) Snapshot() map[string]UsageRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := make(map[string]UsageRecord, len(l.records))
	for key, record := range l.records {
		records[key] = record
	}
	return records
}

// PruneBefore removes records with date keys strictly before cutoffKey and
// flushes if anything was removed. Date keys sort lexically in calendar
// order, so a plain string comparison suffices.
func (l *Ledger) PruneBefore(ctx context.Context, cutoffKey string) (int, error) {
	l.mu.Lock()
	pruned := 0
	for key := range l.records {
		if key < cutoffKey {
			delete(l.records, key)
			pruned++
		}
	}
	l.mu.Unlock()

	if pruned == 0 {
		return 0, nil
	}

	l.logger.Info().Int("records", pruned).Str("cutoff", cutoffKey).Msg("Pruned old usage records")

	return pruned, l.Flush(ctx)
}
