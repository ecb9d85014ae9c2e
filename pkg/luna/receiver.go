// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"encoding/binary"
	"io"
	"time"
)

// FrameReceiver reassembles measurement frames from a byte stream that is
// delivered in chunks of any size. Receive (and Write) must be called from
// a single goroutine; readers use the SensorState and the Ready channel.
//
// Parse state: expected == 0 means the receiver is searching for the
// 0x59 0x59 marker; otherwise it is waiting for expected-frame.Len() more
// payload bytes. A lone candidate marker byte at the end of a delivery is
// held in pending until the next delivery.
type FrameReceiver struct {
	state   *SensorState
	policy  ChecksumPolicy
	stats   *Statistics
	logf    Logf
	onFrame func(Measurement)
	onError func(error)

	frame      fixedBuffer
	expected   int
	pending    byte
	hasPending bool

	ready chan struct{}
}

// NewFrameReceiver creates a receiver publishing into state
func NewFrameReceiver(state *SensorState, opts ...Option) *FrameReceiver {
	o := buildOptions(opts)
	return newFrameReceiver(state, o)
}

func newFrameReceiver(state *SensorState, o options) *FrameReceiver {
	return &FrameReceiver{
		state:   state,
		policy:  o.policy,
		stats:   o.stats,
		logf:    o.logf,
		onFrame: o.onFrame,
		onError: o.onError,
		frame:   newFixedBuffer(FramePayloadSize),
		ready:   make(chan struct{}, 1),
	}
}

// Ready is signalled after each published frame. Completions that happen
// before the signal is consumed collapse into one.
func (r *FrameReceiver) Ready() <-chan struct{} {
	return r.ready
}

// Statistics returns the receiver's statistics tracker
func (r *FrameReceiver) Statistics() *Statistics {
	return r.stats
}

// AwaitingHeader reports whether the receiver is in marker search with no
// partial marker held
func (r *FrameReceiver) AwaitingHeader() bool {
	return r.expected == 0 && !r.hasPending
}

// Progress returns the expected payload length and the bytes filled so far
func (r *FrameReceiver) Progress() (expected, filled int) {
	return r.expected, r.frame.Len()
}

// Receive consumes a prefix of chunk and returns its length. Callers
// delivering a chunk must call again with the remainder; Write does that.
func (r *FrameReceiver) Receive(chunk []byte) int {
	if len(chunk) == 0 {
		return 0
	}

	switch r.state.Phase() {
	case PhaseAttached:
		r.resetFrame()
		r.stats.RecordIgnored(len(chunk))
		return len(chunk)
	case PhaseAwaitingEcho:
		if len(chunk) >= ProbeEchoMinLength && r.state.advance(PhaseAwaitingEcho, PhaseStreaming) {
			r.stats.RecordEcho(len(chunk))
			r.logf("luna: discarded %d byte probe echo", len(chunk))
			// streaming starts from marker search
			r.resetFrame()
			return len(chunk)
		}
	}

	if r.expected == 0 {
		return r.searchMarker(chunk)
	}
	return r.accumulate(chunk)
}

// Write feeds every byte of p through Receive. It never fails for a
// non-empty chunk and lets a FrameReceiver be the sink of io.Copy.
func (r *FrameReceiver) Write(p []byte) (int, error) {
	off := 0
	for off < len(p) {
		n := r.Receive(p[off:])
		if n == 0 {
			return off, io.ErrShortWrite
		}
		off += n
	}
	return off, nil
}

// searchMarker tests the next two bytes against the measurement marker.
// A mismatching pair is discarded as a unit.
func (r *FrameReceiver) searchMarker(chunk []byte) int {
	if r.hasPending {
		r.hasPending = false
		if r.pending == markerHigh && chunk[0] == markerLow {
			r.beginFrame()
		} else {
			r.stats.RecordResync(MarkerSize)
		}
		return 1
	}

	if len(chunk) < MarkerSize {
		r.pending = chunk[0]
		r.hasPending = true
		return 1
	}

	if binary.BigEndian.Uint16(chunk) != MeasurementHeader {
		r.stats.RecordResync(MarkerSize)
		return MarkerSize
	}
	r.beginFrame()
	return MarkerSize
}

func (r *FrameReceiver) beginFrame() {
	r.frame.Reset()
	r.expected = FramePayloadSize
}

// accumulate copies as much of the payload as this delivery holds
func (r *FrameReceiver) accumulate(chunk []byte) int {
	n := r.expected - r.frame.Len()
	if n > len(chunk) {
		n = len(chunk)
	}
	if err := r.frame.Append(chunk[:n]...); err != nil {
		r.logf("luna: %v", err)
		r.resetFrame()
		return n
	}
	if r.frame.Len() == r.expected {
		r.complete()
	}
	return n
}

// complete validates and publishes the buffered frame, then returns to
// marker search
func (r *FrameReceiver) complete() {
	defer r.resetFrame()

	payload := r.frame.Bytes()
	if ok, expected, received := r.policy.verifyFrame(payload); !ok {
		err := &ChecksumError{Expected: expected, Received: received}
		r.stats.RecordChecksumError()
		r.logf("luna: dropped frame: %v", err)
		if r.onError != nil {
			r.onError(err)
		}
		return
	}

	m := decodeMeasurement(payload)
	r.state.publish(m, time.Now())
	r.stats.RecordFrame(m, ValidateMeasurement(m))
	if r.onFrame != nil {
		r.onFrame(m)
	}

	select {
	case r.ready <- struct{}{}:
	default:
	}
}

func (r *FrameReceiver) resetFrame() {
	r.frame.Reset()
	r.expected = 0
	r.hasPending = false
}
