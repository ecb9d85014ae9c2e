// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Thermoquad/lunastat/pkg/luna"
	"github.com/spf13/cobra"
)

var responseTimeout time.Duration

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Query the sensor firmware version",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restart the sensor firmware",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

var rateCmd = &cobra.Command{
	Use:   "rate <divisor>",
	Short: "Set the sample rate divisor",
	Long: `Set the sensor sample rate to 500/divisor Hz.

Valid divisors are 2 to 500. A divisor of 0 selects trigger mode, where the
sensor only measures on request.`,
	Args: cobra.ExactArgs(1),
	RunE: runRate,
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Trigger a single measurement and print it",
	Args:  cobra.NoArgs,
	RunE:  runTrigger,
}

func init() {
	rootCmd.AddCommand(versionCmd, resetCmd, rateCmd, triggerCmd)
	for _, c := range []*cobra.Command{versionCmd, triggerCmd} {
		c.Flags().DurationVar(&responseTimeout, "timeout", 2*time.Second, "Time to wait for the sensor's reply")
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), responseTimeout)
	defer cancel()

	v, err := requestVersion(ctx, s.sensor, s.conn)
	if err != nil {
		return err
	}
	fmt.Printf("Firmware: %s\n", v)
	return nil
}

// requestVersion sends GET_VERSION and decodes the reply straight from r.
// Measurement frames interleaved with the reply are skipped.
func requestVersion(ctx context.Context, sensor *luna.Sensor, r io.Reader) (luna.Version, error) {
	type result struct {
		v   luna.Version
		err error
	}
	done := make(chan result, 1)

	go func() {
		decoder := luna.NewResponseDecoder()
		buf := make([]byte, 64)
		for {
			n, err := r.Read(buf)
			for i := 0; i < n; i++ {
				p, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil || p == nil || p.ID != luna.CmdGetVersion {
					continue
				}
				v, err := luna.ParseVersion(p)
				done <- result{v, err}
				return
			}
			if err != nil {
				done <- result{err: fmt.Errorf("read failed: %w", err)}
				return
			}
		}
	}()

	if err := sensor.RequestVersion(); err != nil {
		return luna.Version{}, err
	}

	select {
	case res := <-done:
		return res.v, res.err
	case <-ctx.Done():
		return luna.Version{}, fmt.Errorf("no version response: %w", ctx.Err())
	}
}

func runReset(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.sensor.SoftReset(); err != nil {
		return err
	}
	fmt.Println("Soft reset sent")
	return nil
}

func runRate(cmd *cobra.Command, args []string) error {
	divisor, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid divisor %q: %w", args[0], luna.ErrInvalidDivisor)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.sensor.SetSampleRate(uint16(divisor)); err != nil {
		return err
	}
	fmt.Println(describeRate(s.sensor.State().Snapshot()))
	return nil
}

// describeRate renders the sampling configuration held in a snapshot
func describeRate(snap luna.Snapshot) string {
	if snap.TriggerMode {
		return "Sampling: trigger mode"
	}
	return fmt.Sprintf("Sampling: %d Hz (divisor %d)", snap.FrequencyCode, snap.SamplingDivisor)
}

func runTrigger(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), responseTimeout)
	defer cancel()

	m, err := waitFirstFrame(ctx, s)
	if err != nil {
		return fmt.Errorf("no measurement: %w", err)
	}
	printMeasurement(m, time.Now(), true)
	return nil
}
