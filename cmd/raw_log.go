// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/lunastat/pkg/luna"
	"github.com/spf13/cobra"
)

var (
	rawLogRate     uint16
	rawLogPoll     time.Duration
	rawLogAnomaly  bool
	rawLogInterval int
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded measurements in human-readable format",
	Long: `Continuously decode and display TF-Luna measurement frames as they arrive.

The sensor is probed (trigger mode) and then switched to the sample rate
divisor given with --rate (500/divisor Hz). With --rate 0 it stays in trigger
mode and is polled every --poll interval.

Frames failing the checksum are reported, as are measurements outside the
sensor's rated envelope (weak or saturated signal, out of range distance,
die temperature).

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().Uint16Var(&rawLogRate, "rate", 0, "Sample rate divisor (2-500, 0 = trigger mode)")
	rawLogCmd.Flags().DurationVar(&rawLogPoll, "poll", 100*time.Millisecond, "Trigger interval in trigger mode")
	rawLogCmd.Flags().BoolVar(&rawLogAnomaly, "anomalies", true, "Report anomalous measurements")
	rawLogCmd.Flags().IntVar(&rawLogInterval, "stats-interval", 0, "Print statistics every N seconds (0 = only on exit)")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("rate") {
		rawLogRate = cfg.Sensor.Rate
	}
	if _, err := luna.FrequencyCode(rawLogRate); err != nil {
		return err
	}

	s, err := openSession(
		luna.WithFrameHandler(func(m luna.Measurement) {
			printMeasurement(m, time.Now(), rawLogAnomaly)
		}),
		luna.WithErrorHandler(func(err error) {
			fmt.Printf("[ERROR] %v\n", err)
		}),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.serveMetrics(); err != nil {
		return err
	}

	s.printHeader("Raw Measurement Log")
	if err := s.startProbed(rawLogRate); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var poll <-chan time.Time
	if rawLogRate == 0 {
		ticker := time.NewTicker(rawLogPoll)
		defer ticker.Stop()
		poll = ticker.C
	}

	var stats <-chan time.Time
	if rawLogInterval > 0 {
		ticker := time.NewTicker(time.Duration(rawLogInterval) * time.Second)
		defer ticker.Stop()
		stats = ticker.C
	}

	for {
		select {
		case <-poll:
			if err := s.sensor.Trigger(); err != nil {
				logger.WithError(err).Warn("Trigger failed")
			}
		case <-stats:
			fmt.Print(s.sensor.Statistics())
		case err := <-s.readErr:
			logReadErr(err)
			fmt.Print(s.sensor.Statistics())
			return nil
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(s.sensor.Statistics())
			return nil
		}
	}
}

// printMeasurement prints one measurement and, optionally, its anomalies
func printMeasurement(m luna.Measurement, ts time.Time, anomalies bool) {
	fmt.Print(luna.FormatMeasurement(m, ts))
	if !anomalies {
		return
	}
	for _, v := range luna.ValidateMeasurement(m) {
		fmt.Printf("  \033[1;33mANOMALY (%s):\033[0m %s\n", v.Type, v.Message)
	}
}
