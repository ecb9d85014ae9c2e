// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/lunastat/pkg/luna"
	"github.com/spf13/cobra"
)

var (
	frameWaitTimeout int
)

var frameWaitCmd = &cobra.Command{
	Use:   "frame_wait",
	Short: "Test connection by waiting for a valid measurement frame",
	Long: `Wait for a valid TF-Luna measurement frame on the connection until timeout.

The sensor is probed and then triggered once; the command waits for a frame
that passes the checksum. Stray bytes before the frame are skipped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runFrameWait,
}

func init() {
	rootCmd.AddCommand(frameWaitCmd)
	frameWaitCmd.Flags().IntVar(&frameWaitTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameWait(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	fmt.Printf("Lunastat - Frame Test\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Timeout: %d seconds\n", frameWaitTimeout)
	fmt.Printf("Waiting for valid measurement frame...\n\n")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(frameWaitTimeout)*time.Second)
	defer cancel()

	m, err := waitFirstFrame(ctx, s)
	switch {
	case err == nil:
		c := s.sensor.Statistics()
		if c.ResyncBytes > 0 {
			fmt.Printf("(skipped %d invalid bytes before sync)\n", c.ResyncBytes)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Distance: %d cm\n", m.DistanceRaw)
		fmt.Printf("  Amplitude: %d\n", m.SignalStrength)
		fmt.Printf("  Temperature: %.1f°C\n", m.TemperatureCelsius())
		os.Exit(0)
	case ctx.Err() != nil:
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameWaitTimeout)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	return nil
}

// waitFirstFrame probes the sensor, triggers one measurement and waits for
// any frame to be published
func waitFirstFrame(ctx context.Context, s *session) (luna.Measurement, error) {
	if err := s.startProbed(0); err != nil {
		return luna.Measurement{}, err
	}

	type result struct {
		m   luna.Measurement
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := s.sensor.Sample(ctx)
		done <- result{m, err}
	}()

	select {
	case r := <-done:
		return r.m, r.err
	case err := <-s.readErr:
		return luna.Measurement{}, fmt.Errorf("read failed: %w", err)
	}
}
