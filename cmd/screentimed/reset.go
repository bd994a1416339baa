package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tlind/screentimed/internal/clock"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset today's screen time",
	Long:  `Zero today's accumulated minutes and session count. Other dates are untouched.`,
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	led, cleanup, _, err := openLedger()
	if err != nil {
		return err
	}
	defer cleanup()

	before := led.Get(clock.DateKey(clock.RealClock{}.Now()))

	if err := led.ResetToday(context.Background()); err != nil {
		return fmt.Errorf("failed to reset today's usage: %w", err)
	}

	color.New(color.FgGreen).Printf("Reset %s: ", before.Date)
	fmt.Printf("cleared %.1f min across %d sessions\n", before.ScreenTimeMinutes, before.SessionCount)
	return nil
}
