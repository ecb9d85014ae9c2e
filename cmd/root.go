// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/lunastat/internal/config"
	"github.com/Thermoquad/lunastat/pkg/luna"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Protocol flags
	checksumName string
	writeTimeout time.Duration

	configPath string

	// Diagnostics flags
	logLevel    string
	logFormat   string
	metricsAddr string

	// cfg is the loaded configuration file, or the defaults
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "lunastat",
	Short: "TF-Luna lidar protocol tool",
	Long: `Lunastat - A CLI tool for talking to TF-Luna single-point lidar sensors.

Decodes the 9-byte measurement stream, sends configuration commands (sample
rate, trigger, reset, version) and records or replays measurements.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from a YAML file given with --config; flags set on the
command line take precedence over the file.

For WebSocket authentication, the password is read from the LUNASTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", luna.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Protocol flags
	rootCmd.PersistentFlags().StringVar(&checksumName, "checksum", "payload", "Frame checksum policy: payload, frame or off")
	rootCmd.PersistentFlags().DurationVar(&writeTimeout, "write-timeout", luna.DefaultWriteTimeout, "Bound on each command write")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")

	// Diagnostics flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9120)")
}

// loadConfig reads --config and fills every flag the user did not set
func loadConfig(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyConfig(cmd.Flags(), cfg)

	if err := setupLogger(logLevel, logFormat); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	if _, err := luna.ParseChecksumPolicy(checksumName); err != nil {
		return fmt.Errorf("--checksum: %w", err)
	}
	return nil
}

// applyConfig copies file values into flag variables that were not set
// explicitly
func applyConfig(flags *pflag.FlagSet, c *config.Config) {
	if !flags.Changed("port") && c.Serial.Port != "" {
		portName = c.Serial.Port
	}
	if !flags.Changed("baud") && c.Serial.Baud > 0 {
		baudRate = c.Serial.Baud
	}
	if !flags.Changed("url") && c.WebSocket.URL != "" {
		wsURL = c.WebSocket.URL
	}
	if !flags.Changed("username") && c.WebSocket.Username != "" {
		wsUsername = c.WebSocket.Username
	}
	if !flags.Changed("no-ssl-verify") {
		wsNoSSLVerify = wsNoSSLVerify || c.WebSocket.NoSSLVerify
	}
	if !flags.Changed("checksum") && c.Sensor.Checksum != "" {
		checksumName = c.Sensor.Checksum
	}
	if !flags.Changed("write-timeout") && c.Sensor.WriteTimeout > 0 {
		writeTimeout = c.Sensor.WriteTimeout
	}
	if !flags.Changed("log-level") && c.Log.Level != "" {
		logLevel = c.Log.Level
	}
	if !flags.Changed("log-format") && c.Log.Format != "" {
		logFormat = c.Log.Format
	}
	if !flags.Changed("metrics-addr") && c.Metrics.Addr != "" {
		metricsAddr = c.Metrics.Addr
	}
}

// sensorOptions builds the luna options shared by every command
func sensorOptions(extra ...luna.Option) []luna.Option {
	policy, err := luna.ParseChecksumPolicy(checksumName)
	if err != nil {
		logger.Warnf("Invalid checksum policy %q, using payload", checksumName)
	}
	opts := []luna.Option{
		luna.WithChecksumPolicy(policy),
		luna.WithWriteTimeout(writeTimeout),
		luna.WithLogger(lunaLogf()),
		luna.WithStatistics(luna.NewStatistics(cfg.Sensor.StatsWindow)),
	}
	return append(opts, extra...)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
