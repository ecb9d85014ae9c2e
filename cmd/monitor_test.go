// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"testing"

	"github.com/Thermoquad/lunastat/pkg/luna"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T) (monitorModel, *fakeDevice) {
	t.Helper()
	dev := newFakeDevice(nil)
	t.Cleanup(func() { dev.Close() })
	stats := luna.NewStatistics(10)
	sensor := luna.NewSensor(transportFor(dev), luna.WithLogger(nil), luna.WithStatistics(stats))
	return newMonitorModel(sensor, stats, "fake"), dev
}

func TestMonitor_SelectPresetSetsRate(t *testing.T) {
	m, dev := newTestMonitor(t)

	// second preset is 1 Hz
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg := cmd()
	result, ok := msg.(rateResultMsg)
	require.True(t, ok)
	require.NoError(t, result.err)
	assert.Equal(t, uint16(500), result.divisor)
	assert.Equal(t, []luna.CommandID{luna.CmdSetSampleFrequency}, dev.Commands())

	next, _ = next.Update(msg)
	mm := next.(monitorModel)
	require.NotEmpty(t, mm.errorLog)
	assert.Equal(t, "Sampling: 1 Hz (divisor 500)", mm.errorLog[len(mm.errorLog)-1].message)
}

func TestMonitor_TypedDivisor(t *testing.T) {
	m, _ := newTestMonitor(t)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1")})
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd, "invalid divisor is not sent")
	mm := next.(monitorModel)
	require.NotEmpty(t, mm.errorLog)
	assert.True(t, mm.errorLog[len(mm.errorLog)-1].isError)
}

func TestMonitor_ConnectionLost(t *testing.T) {
	m, _ := newTestMonitor(t)

	next, _ := m.Update(connectionLostMsg{err: errors.New("EOF")})
	mm := next.(monitorModel)
	assert.True(t, mm.connectionLost)
	assert.Contains(t, mm.View(), "Connection lost")
}

func TestMonitor_TickRefreshesSnapshot(t *testing.T) {
	m, _ := newTestMonitor(t)
	m.sensor.Probe()
	m.sensor.Write(make([]byte, luna.ProbeEchoMinLength))
	m.sensor.Write(luna.EncodeFrame(testMeasurement))

	next, cmd := m.Update(monitorTickMsg{})
	assert.NotNil(t, cmd)
	mm := next.(monitorModel)
	assert.Equal(t, testMeasurement, mm.snapshot.Measurement)
	assert.Equal(t, uint64(1), mm.counters.Frames)
	assert.Contains(t, mm.View(), "300 cm")
}
