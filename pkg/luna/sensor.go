// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"context"
	"fmt"
	"sync"
)

// Sensor ties together the state, encoder, receiver and sampling controller
// of one device connection. Received bytes are fed through Write (or
// Receive); commands are serialised so only one is in flight at a time.
type Sensor struct {
	state    *SensorState
	encoder  *Encoder
	sampling *SamplingController
	receiver *FrameReceiver
	logf     Logf

	commandMu sync.Mutex
}

// NewSensor creates a sensor in PhaseAttached that writes commands to t
func NewSensor(t Transport, opts ...Option) *Sensor {
	o := buildOptions(opts)

	state := NewSensorState()
	encoder := NewEncoder(t)
	encoder.SetTimeout(o.writeTimeout)

	return &Sensor{
		state:    state,
		encoder:  encoder,
		sampling: NewSamplingController(encoder, state),
		receiver: newFrameReceiver(state, o),
		logf:     o.logf,
	}
}

// State returns the shared sensor state
func (s *Sensor) State() *SensorState {
	return s.state
}

// Receiver returns the frame receiver fed by Write
func (s *Sensor) Receiver() *FrameReceiver {
	return s.receiver
}

// Statistics returns a snapshot of the receiver statistics
func (s *Sensor) Statistics() Counters {
	return s.receiver.stats.Snapshot()
}

// Probe initialises the device: it selects trigger mode and then marks the
// driver ready, so the delayed echo of the probe commands is discarded and
// everything after it is parsed as measurement traffic.
func (s *Sensor) Probe() error {
	if err := s.SetTriggerMode(); err != nil {
		return fmt.Errorf("failed to initialize sensor in trigger mode: %w", err)
	}
	s.state.advance(PhaseAttached, PhaseAwaitingEcho)
	s.logf("luna: sensor initialized (trigger mode)")
	return nil
}

// Detach stops treating received bytes as protocol traffic
func (s *Sensor) Detach() {
	s.state.setPhase(PhaseAttached)
}

// Receive hands one delivered chunk to the frame receiver
func (s *Sensor) Receive(chunk []byte) int {
	return s.receiver.Receive(chunk)
}

// Write implements io.Writer for the receive path
func (s *Sensor) Write(p []byte) (int, error) {
	return s.receiver.Write(p)
}

// Ready is signalled after each published frame
func (s *Sensor) Ready() <-chan struct{} {
	return s.receiver.Ready()
}

// WaitFrame blocks until the next frame-ready signal and returns the latest
// measurement
func (s *Sensor) WaitFrame(ctx context.Context) (Measurement, error) {
	select {
	case <-s.receiver.Ready():
		return s.state.Measurement(), nil
	case <-ctx.Done():
		return Measurement{}, ctx.Err()
	}
}

// SetSampleRate changes the sample rate divisor (0 selects trigger mode)
func (s *Sensor) SetSampleRate(divisor uint16) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	return s.sampling.SetSampleRate(divisor)
}

// SetTriggerMode is SetSampleRate(0)
func (s *Sensor) SetTriggerMode() error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	return s.sampling.SetTriggerMode()
}

// Trigger asks the device for one measurement while in trigger mode
func (s *Sensor) Trigger() error {
	return s.send(CmdSetSampleTrigger, nil)
}

// SoftReset restarts the device firmware
func (s *Sensor) SoftReset() error {
	return s.send(CmdSoftReset, nil)
}

// RequestVersion asks the device for its firmware version. The response
// arrives on the receive path; decode it with a ResponseDecoder.
func (s *Sensor) RequestVersion() error {
	return s.send(CmdGetVersion, nil)
}

// Sample triggers one measurement and waits for it. A frame-ready signal
// left over from before the trigger is dropped first.
func (s *Sensor) Sample(ctx context.Context) (Measurement, error) {
	select {
	case <-s.receiver.Ready():
	default:
	}
	if err := s.Trigger(); err != nil {
		return Measurement{}, err
	}
	return s.WaitFrame(ctx)
}

func (s *Sensor) send(id CommandID, params []byte) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if err := s.encoder.Send(id, params); err != nil {
		return fmt.Errorf("failed to send %s: %w", id, err)
	}
	return nil
}
