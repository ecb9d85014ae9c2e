// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"sync"
	"time"
)

// mockTransport records every write and can simulate failures
type mockTransport struct {
	mu       sync.Mutex
	writes   [][]byte
	timeouts []time.Duration
	err      error
	short    int // when > 0, report only this many bytes written
}

func (m *mockTransport) Write(p []byte, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts = append(m.timeouts, timeout)
	if m.err != nil {
		return 0, m.err
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	m.writes = append(m.writes, buf)
	if m.short > 0 && m.short < len(p) {
		return m.short, nil
	}
	return len(p), nil
}

func (m *mockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// streamingReceiver returns a receiver whose connection is already past the
// probe echo
func streamingReceiver(opts ...Option) (*FrameReceiver, *SensorState) {
	state := NewSensorState()
	state.setPhase(PhaseStreaming)
	opts = append([]Option{WithLogger(nil)}, opts...)
	return NewFrameReceiver(state, opts...), state
}

// testFrame is 300 cm, amplitude 1000, 25 °C
var testFrame = []byte{0x59, 0x59, 0x2C, 0x01, 0xE8, 0x03, 0xC8, 0x08, 0xE8}

var testMeasurement = Measurement{DistanceRaw: 300, SignalStrength: 1000, TemperatureRaw: 0x08C8}
