// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/Thermoquad/lunastat/pkg/luna"
	"github.com/spf13/cobra"
)

var (
	recordOut   string
	recordCount int
	recordRate  uint16
	recordPoll  time.Duration

	replayRealtime bool
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record measurements to a CBOR file",
	Long: `Record decoded measurements to a file as a CBOR sequence.

Each record holds the receive timestamp and the raw distance, amplitude and
temperature values. Recording stops after --count measurements, or on
Ctrl+C when --count is 0. Records are appended to an existing file.`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Print the measurements of a recorded CBOR file",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	rootCmd.AddCommand(recordCmd, replayCmd)
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "", "Output file (required)")
	recordCmd.Flags().IntVarP(&recordCount, "count", "n", 0, "Stop after N measurements (0 = until interrupted)")
	recordCmd.Flags().Uint16Var(&recordRate, "rate", 0, "Sample rate divisor (2-500, 0 = trigger mode)")
	recordCmd.Flags().DurationVar(&recordPoll, "poll", 100*time.Millisecond, "Trigger interval in trigger mode")
	recordCmd.MarkFlagRequired("out")

	replayCmd.Flags().BoolVar(&replayRealtime, "realtime", false, "Replay with the recorded timing")
}

func runRecord(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("rate") {
		recordRate = cfg.Sensor.Rate
	}

	f, err := os.OpenFile(recordOut, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", recordOut, err)
	}
	defer f.Close()
	out := bufio.NewWriter(f)

	// mu guards out against the frame handler on the reader goroutine
	var mu sync.Mutex
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		out.Flush()
	}()

	w := luna.NewRecordWriter(out)
	full := make(chan struct{})

	s, err := openSession(luna.WithFrameHandler(func(m luna.Measurement) {
		mu.Lock()
		defer mu.Unlock()
		if recordCount > 0 && w.Count() >= recordCount {
			return
		}
		if err := w.Write(m, time.Now()); err != nil {
			logger.WithError(err).Error("Record failed")
			return
		}
		if recordCount > 0 && w.Count() == recordCount {
			close(full)
		}
	}))
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.serveMetrics(); err != nil {
		return err
	}

	s.printHeader("Record")
	fmt.Printf("Output: %s\n\n", recordOut)
	if err := s.startProbed(recordRate); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var poll <-chan time.Time
	if recordRate == 0 {
		ticker := time.NewTicker(recordPoll)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-poll:
			if err := s.sensor.Trigger(); err != nil {
				logger.WithError(err).Warn("Trigger failed")
			}
		case <-full:
			fmt.Printf("Recorded %d measurements\n", recordCount)
			return nil
		case err := <-s.readErr:
			logReadErr(err)
			return nil
		case <-ctx.Done():
			fmt.Printf("\nRecording stopped\n")
			return nil
		}
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	stats, err := replay(bufio.NewReader(f), os.Stdout, replayRealtime)
	if err != nil {
		return err
	}
	fmt.Print(stats)
	return nil
}

// replay prints every record of r to w and returns the statistics of the
// replayed measurements
func replay(r io.Reader, w io.Writer, realtime bool) (luna.Counters, error) {
	reader := luna.NewRecordReader(r)
	stats := luna.NewStatistics(luna.DefaultStatsWindow)

	var last time.Time
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return stats.Snapshot(), nil
		}
		if err != nil {
			return stats.Snapshot(), err
		}

		ts := rec.Time()
		if realtime && !last.IsZero() && ts.After(last) {
			time.Sleep(ts.Sub(last))
		}
		last = ts

		m := rec.Measurement()
		anomalies := luna.ValidateMeasurement(m)
		stats.RecordFrame(m, anomalies)

		fmt.Fprint(w, luna.FormatMeasurement(m, ts))
		for _, a := range anomalies {
			fmt.Fprintf(w, "  ANOMALY (%s): %s\n", a.Type, a.Message)
		}
	}
}
