package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tlind/screentimed/internal/clock"
	"github.com/tlind/screentimed/internal/config"
	"github.com/tlind/screentimed/internal/ledger"
	"github.com/tlind/screentimed/internal/locale"
	"github.com/tlind/screentimed/internal/views"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current usage statistics",
	Long:  `Show today's screen time, the rolling week and the running daily average from the persisted ledger.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	led, cleanup, cfg, err := openLedger()
	if err != nil {
		return err
	}
	defer cleanup()

	now := clock.RealClock{}.Now()
	today := clock.DateKey(now)
	records := led.Snapshot()

	bold := color.New(color.Bold)
	heading := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)

	heading.Println("Screen Time")
	fmt.Printf("Today (%s): ", today)
	bold.Printf("%.1f min", views.Round1(led.Get(today).ScreenTimeMinutes))
	dim.Printf("  (%d sessions)\n", led.Get(today).SessionCount)
	fmt.Printf("Daily average: %.1f min\n\n", views.AverageDaily(records))

	heading.Println("Rolling week")
	week := views.RollingWeek(records, now, cfg.Tracking.FocusFraction, locale.EnglishDayLabel)
	for _, entry := range week {
		fmt.Printf("  %-9s %s  screen %6.1f min  focus %6.1f min\n",
			entry.Day, entry.Date, entry.ScreenTime, entry.FocusTime)
	}

	return nil
}

// openLedger loads the persisted ledger for read-mostly CLI commands.
func openLedger() (*ledger.Ledger, func(), *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	gateway, err := openGateway(cfg.Storage)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	cleanup := func() { _ = gateway.Close() }

	led := ledger.New(gateway, cfg.Storage.Key, clock.RealClock{}, zerolog.Nop())
	if err := led.Load(context.Background()); err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	return led, cleanup, cfg, nil
}
