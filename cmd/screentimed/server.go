package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tlind/screentimed/internal/clock"
	"github.com/tlind/screentimed/internal/config"
	"github.com/tlind/screentimed/internal/engine"
	"github.com/tlind/screentimed/internal/ledger"
	"github.com/tlind/screentimed/internal/lifecycle"
	"github.com/tlind/screentimed/internal/locale"
	"github.com/tlind/screentimed/internal/metrics"
	"github.com/tlind/screentimed/internal/notify"
	"github.com/tlind/screentimed/internal/storage"
	"github.com/tlind/screentimed/internal/storage/bolt"
	"github.com/tlind/screentimed/internal/storage/redis"
	"github.com/tlind/screentimed/internal/systemd"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the screentimed tracking daemon",
	Long:  `Start the tracking daemon: watches logind for lock/unlock and sleep/wake transitions, maintains the daily usage ledger and serves metrics.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting screentimed")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to get systemd listeners")
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	gateway, err := openGateway(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("key", cfg.Storage.Key).
		Msg("Storage initialized")

	led := ledger.New(gateway, cfg.Storage.Key, clock.RealClock{}, logger)

	eng := engine.New(
		led,
		lifecycle.NewLogindSource(logger),
		clock.RealClock{},
		engine.Config{
			TickInterval:  parseDuration(cfg.Tracking.TickInterval, engine.DefaultTickInterval),
			FocusFraction: cfg.Tracking.FocusFraction,
			RetentionDays: cfg.Tracking.RetentionDays,
			DayLabeler:    locale.EnglishDayLabel,
		},
		logger,
	)

	// Threshold notifications live in the consumer layer; the engine only
	// exposes the current value.
	beeep.AppName = "screentimed"
	notifier := notify.NewThresholdNotifier(cfg.Tracking.NotifyThresholdMinutes, logger)
	eng.SetUpdateHook(notifier.Observe)

	if err := eng.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start tracking engine: %w", err)
	}

	logger.Info().Msg("Tracking engine initialized")

	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start Metrics Server")
	}

	logger.Info().
		Str("addr", metricsAddr).
		Msg("Metrics Server started")

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd readiness")
	}

	logger.Info().Msg("screentimed startup complete")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd stop")
	}

	eng.Stop()

	if err := led.Flush(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Final ledger flush failed")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("screentimed stopped")
	return nil
}

// openGateway opens the configured storage backend
func openGateway(cfg config.StorageConfig) (storage.Gateway, error) {
	switch cfg.Type {
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return bolt.Open(cfg.Path)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
