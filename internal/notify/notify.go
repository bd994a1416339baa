package notify

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

// ThresholdNotifier raises a desktop alert the first time today's screen
// time crosses the configured threshold. It observes values the engine
// exposes; the engine itself never dispatches notifications.
type ThresholdNotifier struct {
	threshold float64
	logger    zerolog.Logger

	mu           sync.Mutex
	notifiedDate string
}

// NewThresholdNotifier creates a notifier. A threshold of 0 or less
// disables notifications.
func NewThresholdNotifier(thresholdMinutes float64, logger zerolog.Logger) *ThresholdNotifier {
	return &ThresholdNotifier{
		threshold: thresholdMinutes,
		logger:    logger.With().Str("component", "notifier").Logger(),
	}
}

// Observe checks today's total against the threshold and alerts at most
// once per date key.
func (n *ThresholdNotifier) Observe(dateKey string, todayMinutes float64) {
	if n.threshold <= 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if todayMinutes < n.threshold || n.notifiedDate == dateKey {
		return
	}
	n.notifiedDate = dateKey

	message := fmt.Sprintf("You have used %.0f minutes of screen time today", todayMinutes)
	if err := beeep.Alert("Screen Time", message, ""); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send threshold notification")
		return
	}

	n.logger.Info().
		Str("date", dateKey).
		Float64("minutes", todayMinutes).
		Float64("threshold", n.threshold).
		Msg("Screen time threshold notification sent")
}
