package lifecycle

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

// LogindSource derives lifecycle transitions from systemd-logind: a
// session's LockedHint flipping maps to background/foreground, and
// PrepareForSleep maps suspend to background and resume to foreground.
type LogindSource struct {
	logger zerolog.Logger
}

// NewLogindSource creates a logind-backed lifecycle source.
func NewLogindSource(logger zerolog.Logger) *LogindSource {
	return &LogindSource{
		logger: logger.With().Str("component", "logind-source").Logger(),
	}
}

// Subscribe connects to the system bus and starts delivering events to fn.
func (s *LogindSource) Subscribe(fn func(Event)) (func(), error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath("/org/freedesktop/login1"),
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("add match for PrepareForSleep failed: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("add match for PropertiesChanged failed: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	done := make(chan struct{})
	go s.watch(signals, fn, done)

	unsubscribe := func() {
		close(done)
		_ = conn.Close()
	}
	return unsubscribe, nil
}

func (s *LogindSource) watch(signals chan *dbus.Signal, fn func(Event), done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			switch sig.Name {
			case "org.freedesktop.login1.Manager.PrepareForSleep":
				if len(sig.Body) == 0 {
					break
				}
				sleeping, _ := sig.Body[0].(bool)
				if sleeping {
					s.emit(fn, KindBackground)
				} else {
					s.emit(fn, KindForeground)
				}
			case "org.freedesktop.DBus.Properties.PropertiesChanged":
				if len(sig.Body) < 2 {
					break
				}
				iface, ok := sig.Body[0].(string)
				if !ok || iface != "org.freedesktop.login1.Session" {
					break
				}
				changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
				if !ok {
					break
				}
				val, exists := changedProps["LockedHint"]
				if !exists {
					break
				}
				locked, _ := val.Value().(bool)
				if locked {
					s.emit(fn, KindBackground)
				} else {
					s.emit(fn, KindForeground)
				}
			}
		}
	}
}

func (s *LogindSource) emit(fn func(Event), kind Kind) {
	s.logger.Debug().Stringer("kind", kind).Msg("Lifecycle transition observed")
	fn(Event{Kind: kind, Timestamp: time.Now()})
}
