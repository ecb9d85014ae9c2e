// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"fmt"
	"sync"
	"time"
)

// Phase is the lifecycle stage of one sensor connection.
//
//	PhaseAttached -> PhaseAwaitingEcho -> PhaseStreaming
//
// While attached, the probe commands are in flight and every received byte
// is ignored. Once the driver is ready, the first chunk of at least
// ProbeEchoMinLength bytes is the delayed echo of those commands and is
// discarded; after that, bytes are parsed as measurement frames.
type Phase int

const (
	PhaseAttached Phase = iota
	PhaseAwaitingEcho
	PhaseStreaming
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case PhaseAttached:
		return "ATTACHED"
	case PhaseAwaitingEcho:
		return "AWAITING_ECHO"
	case PhaseStreaming:
		return "STREAMING"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Channel selects one of the values exposed to readers
type Channel int

const (
	ChannelDistance Channel = iota
	ChannelSignalStrength
	ChannelTemperature
)

// String returns the channel name
func (c Channel) String() string {
	switch c {
	case ChannelDistance:
		return "distance"
	case ChannelSignalStrength:
		return "signal_strength"
	case ChannelTemperature:
		return "temperature"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// Channels lists the readable channels in exposure order
var Channels = []Channel{ChannelDistance, ChannelSignalStrength, ChannelTemperature}

// Snapshot is a consistent copy of every SensorState field
type Snapshot struct {
	Measurement     Measurement
	UpdatedAt       time.Time
	Frames          uint64
	TriggerMode     bool
	SamplingDivisor int
	FrequencyCode   uint16
	Phase           Phase
}

// SensorState is the shared record of the latest decoded values and the
// sampling configuration of one connection. Every field is read and
// written under mu.
type SensorState struct {
	mu sync.RWMutex

	measurement Measurement
	updatedAt   time.Time
	frames      uint64

	triggerMode     bool
	samplingDivisor int
	frequencyCode   uint16

	phase Phase
}

// NewSensorState creates a zeroed state in PhaseAttached
func NewSensorState() *SensorState {
	return &SensorState{phase: PhaseAttached}
}

// Read returns the raw value of one channel from the last published frame
func (s *SensorState) Read(ch Channel) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch ch {
	case ChannelDistance:
		return int(s.measurement.DistanceRaw), nil
	case ChannelSignalStrength:
		return int(s.measurement.SignalStrength), nil
	case ChannelTemperature:
		return int(s.measurement.TemperatureRaw), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrInvalidChannel, ch)
}

// Measurement returns the last published measurement
func (s *SensorState) Measurement() Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.measurement
}

// Snapshot returns all fields read under a single lock acquisition
func (s *SensorState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Measurement:     s.measurement,
		UpdatedAt:       s.updatedAt,
		Frames:          s.frames,
		TriggerMode:     s.triggerMode,
		SamplingDivisor: s.samplingDivisor,
		FrequencyCode:   s.frequencyCode,
		Phase:           s.phase,
	}
}

// TriggerMode reports whether the device samples only on request
func (s *SensorState) TriggerMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.triggerMode
}

// SamplingDivisor returns the divisor of the last successful rate change
func (s *SensorState) SamplingDivisor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.samplingDivisor
}

// FrequencyCode returns the frequency code last written to the device
func (s *SensorState) FrequencyCode() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frequencyCode
}

// Phase returns the connection phase
func (s *SensorState) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// DriverReady reports whether received bytes are treated as protocol traffic
func (s *SensorState) DriverReady() bool {
	return s.Phase() != PhaseAttached
}

// Configured reports whether the probe echo has been consumed
func (s *SensorState) Configured() bool {
	return s.Phase() == PhaseStreaming
}

// publish replaces the measurement in one critical section
func (s *SensorState) publish(m Measurement, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.measurement = m
	s.updatedAt = at
	s.frames++
}

// applySampling records a rate change the device has accepted
func (s *SensorState) applySampling(code uint16, triggerMode bool, divisor int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frequencyCode = code
	s.triggerMode = triggerMode
	s.samplingDivisor = divisor
}

// setPhase forces the phase
func (s *SensorState) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

// advance moves from one phase to the next; it reports false and leaves the
// phase alone if the current phase is not from.
func (s *SensorState) advance(from, to Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != from {
		return false
	}
	s.phase = to
	return true
}
