// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads lunastat's optional YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/lunastat/pkg/luna"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration file
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// SerialConfig selects a local serial port
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// WebSocketConfig selects a WebSocket byte bridge. The password is never
// read from the file.
type WebSocketConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

// SensorConfig holds protocol settings
type SensorConfig struct {
	Checksum     string        `yaml:"checksum"`      // payload, frame or off
	WriteTimeout time.Duration `yaml:"write_timeout"` // e.g. "500ms"
	Rate         uint16        `yaml:"rate"`          // sample rate divisor, 0 = trigger mode
	StatsWindow  int           `yaml:"stats_window"`
}

// LogConfig controls CLI diagnostics
type LogConfig struct {
	Level  string `yaml:"level"`  // logrus level name
	Format string `yaml:"format"` // text or json
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. ":9090"; empty disables the endpoint
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Baud: luna.DefaultBaudRate,
		},
		Sensor: SensorConfig{
			Checksum:     luna.ChecksumPayload.String(),
			WriteTimeout: luna.DefaultWriteTimeout,
			StatsWindow:  luna.DefaultStatsWindow,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field that has a constrained range
func (c *Config) Validate() error {
	var errs []error
	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
	}
	if _, err := luna.ParseChecksumPolicy(c.Sensor.Checksum); err != nil {
		errs = append(errs, fmt.Errorf("sensor.checksum: %w", err))
	}
	if c.Sensor.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("sensor.write_timeout must not be negative"))
	}
	if _, err := luna.FrequencyCode(c.Sensor.Rate); err != nil {
		errs = append(errs, fmt.Errorf("sensor.rate: %w", err))
	}
	if c.Sensor.StatsWindow < 0 {
		errs = append(errs, fmt.Errorf("sensor.stats_window must not be negative"))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ChecksumPolicy returns the parsed checksum policy
func (c *Config) ChecksumPolicy() luna.ChecksumPolicy {
	p, err := luna.ParseChecksumPolicy(c.Sensor.Checksum)
	if err != nil {
		return luna.ChecksumPayload
	}
	return p
}
