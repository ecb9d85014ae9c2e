// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/lunastat/pkg/luna"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lunastat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, "payload", cfg.Sensor.Checksum)
	assert.Equal(t, luna.DefaultWriteTimeout, cfg.Sensor.WriteTimeout)
	assert.Equal(t, luna.ChecksumPayload, cfg.ChecksumPolicy())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB1
websocket:
  url: wss://bridge.local/luna
  username: admin
  no_ssl_verify: true
sensor:
  checksum: frame
  write_timeout: 250ms
  rate: 5
log:
  level: debug
  format: json
metrics:
  addr: ":9100"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud, "unset fields keep defaults")
	assert.Equal(t, "wss://bridge.local/luna", cfg.WebSocket.URL)
	assert.Equal(t, "admin", cfg.WebSocket.Username)
	assert.True(t, cfg.WebSocket.NoSSLVerify)
	assert.Equal(t, 250*time.Millisecond, cfg.Sensor.WriteTimeout)
	assert.Equal(t, uint16(5), cfg.Sensor.Rate)
	assert.Equal(t, luna.ChecksumFrame, cfg.ChecksumPolicy())
	assert.Equal(t, luna.DefaultStatsWindow, cfg.Sensor.StatsWindow)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		is   error
	}{
		{name: "bad checksum", body: "sensor:\n  checksum: crc16\n"},
		{name: "bad divisor", body: "sensor:\n  rate: 1\n", is: luna.ErrInvalidDivisor},
		{name: "zero baud", body: "serial:\n  baud: 0\n"},
		{name: "bad log level", body: "log:\n  level: loud\n"},
		{name: "bad log format", body: "log:\n  format: xml\n"},
		{name: "malformed", body: "serial: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), "error %v should wrap %v", err, tt.is)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
