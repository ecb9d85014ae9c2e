// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

func expectReady(t *testing.T, r *FrameReceiver) {
	t.Helper()
	select {
	case <-r.Ready():
	default:
		t.Fatal("expected frame-ready signal")
	}
}

func expectNotReady(t *testing.T, r *FrameReceiver) {
	t.Helper()
	select {
	case <-r.Ready():
		t.Fatal("unexpected frame-ready signal")
	default:
	}
}

// ============================================================
// Frame Reassembly Tests
// ============================================================

func TestFrameReceiver_SingleChunk(t *testing.T) {
	r, state := streamingReceiver()

	if n := r.Receive(testFrame[:2]); n != 2 {
		t.Fatalf("marker consumed %d bytes, want 2", n)
	}
	if n := r.Receive(testFrame[2:]); n != FramePayloadSize {
		t.Fatalf("payload consumed %d bytes, want %d", n, FramePayloadSize)
	}

	if got := state.Measurement(); got != testMeasurement {
		t.Errorf("measurement = %+v, want %+v", got, testMeasurement)
	}
	if !r.AwaitingHeader() {
		t.Error("receiver should return to marker search after a frame")
	}
	expectReady(t, r)
}

func TestFrameReceiver_WholeFrameWrite(t *testing.T) {
	r, state := streamingReceiver()

	n, err := r.Write(testFrame)
	if err != nil || n != len(testFrame) {
		t.Fatalf("Write = (%d, %v), want (%d, nil)", n, err, len(testFrame))
	}
	if got := state.Measurement(); got != testMeasurement {
		t.Errorf("measurement = %+v, want %+v", got, testMeasurement)
	}

	for _, ch := range Channels {
		v, err := state.Read(ch)
		if err != nil {
			t.Fatalf("Read(%s) failed: %v", ch, err)
		}
		want := map[Channel]int{
			ChannelDistance:       300,
			ChannelSignalStrength: 1000,
			ChannelTemperature:    0x08C8,
		}[ch]
		if v != want {
			t.Errorf("Read(%s) = %d, want %d", ch, v, want)
		}
	}
	if _, err := state.Read(Channel(7)); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("Read(7) error = %v, want ErrInvalidChannel", err)
	}
}

func TestFrameReceiver_ByteAtATime(t *testing.T) {
	r, state := streamingReceiver()

	for i, b := range testFrame {
		if n := r.Receive([]byte{b}); n != 1 {
			t.Fatalf("byte %d consumed %d, want 1", i, n)
		}
		if i < len(testFrame)-1 && state.Snapshot().Frames != 0 {
			t.Fatalf("frame published early after byte %d", i)
		}
	}

	if got := state.Measurement(); got != testMeasurement {
		t.Errorf("measurement = %+v, want %+v", got, testMeasurement)
	}
}

func TestFrameReceiver_EverySplitOffset(t *testing.T) {
	for split := 1; split < len(testFrame); split++ {
		r, state := streamingReceiver()

		r.Write(testFrame[:split])
		if state.Snapshot().Frames != 0 {
			t.Fatalf("split %d: frame published before last byte", split)
		}
		r.Write(testFrame[split:])

		if got := state.Measurement(); got != testMeasurement {
			t.Errorf("split %d: measurement = %+v, want %+v", split, got, testMeasurement)
		}
	}
}

func TestFrameReceiver_Progress(t *testing.T) {
	r, _ := streamingReceiver()

	if exp, filled := r.Progress(); exp != 0 || filled != 0 {
		t.Errorf("idle Progress = (%d, %d), want (0, 0)", exp, filled)
	}
	r.Write(testFrame[:5])
	if exp, filled := r.Progress(); exp != FramePayloadSize || filled != 3 {
		t.Errorf("Progress = (%d, %d), want (%d, 3)", exp, filled, FramePayloadSize)
	}
}

func TestFrameReceiver_BackToBackFrames(t *testing.T) {
	var seen []Measurement
	r, _ := streamingReceiver(WithFrameHandler(func(m Measurement) {
		seen = append(seen, m)
	}))

	second := Measurement{DistanceRaw: 12, SignalStrength: 4000, TemperatureRaw: 2200}
	stream := append(append([]byte{}, testFrame...), EncodeFrame(second)...)
	r.Write(stream)

	if len(seen) != 2 {
		t.Fatalf("handler saw %d frames, want 2", len(seen))
	}
	if seen[0] != testMeasurement || seen[1] != second {
		t.Errorf("frames = %+v", seen)
	}
	if c := r.Statistics().Snapshot(); c.Frames != 2 {
		t.Errorf("Frames = %d, want 2", c.Frames)
	}
}

// ============================================================
// Marker Search Tests
// ============================================================

func TestFrameReceiver_ResyncDiscardsPairs(t *testing.T) {
	r, state := streamingReceiver()

	r.Write(append([]byte{0x00, 0x13, 0x59, 0x00}, testFrame...))

	if got := state.Measurement(); got != testMeasurement {
		t.Errorf("measurement = %+v, want %+v", got, testMeasurement)
	}
	if c := r.Statistics().Snapshot(); c.ResyncBytes != 4 {
		t.Errorf("ResyncBytes = %d, want 4", c.ResyncBytes)
	}
}

func TestFrameReceiver_MisalignedFrameIsSkipped(t *testing.T) {
	r, state := streamingReceiver()

	// one garbage byte shifts the marker across a pair boundary
	r.Write(append([]byte{0x00}, testFrame...))
	if state.Snapshot().Frames != 0 {
		t.Fatal("misaligned frame should not be published")
	}
	if c := r.Statistics().Snapshot(); c.ResyncBytes != 10 {
		t.Errorf("ResyncBytes = %d, want 10", c.ResyncBytes)
	}

	r.Write(testFrame)
	if got := state.Measurement(); got != testMeasurement {
		t.Errorf("next aligned frame not published: %+v", got)
	}
}

func TestFrameReceiver_SplitMarker(t *testing.T) {
	r, state := streamingReceiver()

	if n := r.Receive([]byte{0x59}); n != 1 {
		t.Fatalf("lone marker byte consumed %d, want 1", n)
	}
	if r.AwaitingHeader() {
		t.Error("pending marker byte should be held")
	}
	if n := r.Receive(testFrame[1:2]); n != 1 {
		t.Fatalf("second marker byte consumed %d, want 1", n)
	}
	if exp, _ := r.Progress(); exp != FramePayloadSize {
		t.Fatalf("expected payload length %d after split marker, got %d", FramePayloadSize, exp)
	}

	r.Write(testFrame[2:])
	if got := state.Measurement(); got != testMeasurement {
		t.Errorf("measurement = %+v, want %+v", got, testMeasurement)
	}
}

func TestFrameReceiver_SplitMarkerMismatch(t *testing.T) {
	r, _ := streamingReceiver()

	r.Receive([]byte{0x59})
	if n := r.Receive([]byte{0x00, 0x59, 0x59}); n != 1 {
		t.Fatalf("mismatched pending pair consumed %d, want 1", n)
	}
	if !r.AwaitingHeader() {
		t.Error("receiver should be back in marker search")
	}
	if c := r.Statistics().Snapshot(); c.ResyncBytes != MarkerSize {
		t.Errorf("ResyncBytes = %d, want %d", c.ResyncBytes, MarkerSize)
	}
}

// ============================================================
// Checksum Tests
// ============================================================

func TestFrameReceiver_ChecksumMismatchDropsFrame(t *testing.T) {
	var gotErr error
	r, state := streamingReceiver(WithErrorHandler(func(err error) {
		gotErr = err
	}))

	bad := append([]byte{}, testFrame...)
	bad[8] ^= 0x01
	r.Write(bad)

	if state.Snapshot().Frames != 0 {
		t.Error("frame with bad checksum was published")
	}
	expectNotReady(t, r)

	var ce *ChecksumError
	if !errors.As(gotErr, &ce) {
		t.Fatalf("error handler got %v, want *ChecksumError", gotErr)
	}
	if ce.Expected != 0xE8 || ce.Received != 0xE9 {
		t.Errorf("ChecksumError = %+v", ce)
	}
	if !errors.Is(gotErr, ErrFrameChecksum) {
		t.Error("ChecksumError should match ErrFrameChecksum")
	}
	if c := r.Statistics().Snapshot(); c.ChecksumErrors != 1 {
		t.Errorf("ChecksumErrors = %d, want 1", c.ChecksumErrors)
	}

	r.Write(testFrame)
	if got := state.Measurement(); got != testMeasurement {
		t.Errorf("good frame after bad one not published: %+v", got)
	}
}

func TestFrameReceiver_ChecksumPolicies(t *testing.T) {
	frameSummed := append([]byte{}, testFrame...)
	frameSummed[8] = 0x9A

	tests := []struct {
		name      string
		policy    ChecksumPolicy
		frame     []byte
		published bool
	}{
		{"payload accepts payload sum", ChecksumPayload, testFrame, true},
		{"payload rejects frame sum", ChecksumPayload, frameSummed, false},
		{"frame accepts frame sum", ChecksumFrame, frameSummed, true},
		{"frame rejects payload sum", ChecksumFrame, testFrame, false},
		{"off accepts anything", ChecksumOff, frameSummed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, state := streamingReceiver(WithChecksumPolicy(tt.policy))
			r.Write(tt.frame)
			if got := state.Snapshot().Frames == 1; got != tt.published {
				t.Errorf("published = %v, want %v", got, tt.published)
			}
		})
	}
}

// ============================================================
// Phase Tests
// ============================================================

func TestFrameReceiver_IgnoresBytesWhileAttached(t *testing.T) {
	state := NewSensorState()
	r := NewFrameReceiver(state, WithLogger(nil))

	if n := r.Receive(testFrame); n != len(testFrame) {
		t.Fatalf("Receive consumed %d, want %d", n, len(testFrame))
	}
	if state.Snapshot().Frames != 0 {
		t.Error("frame published before driver ready")
	}
	if c := r.Statistics().Snapshot(); c.IgnoredBytes != uint64(len(testFrame)) {
		t.Errorf("IgnoredBytes = %d, want %d", c.IgnoredBytes, len(testFrame))
	}
	if state.DriverReady() || state.Configured() {
		t.Error("state should be neither ready nor configured")
	}
}

func TestFrameReceiver_DiscardsProbeEcho(t *testing.T) {
	state := NewSensorState()
	state.setPhase(PhaseAwaitingEcho)
	r := NewFrameReceiver(state, WithLogger(nil))

	// the echo is taken whole even if it looks like a frame
	if n := r.Receive(testFrame); n != len(testFrame) {
		t.Fatalf("echo consumed %d, want %d", n, len(testFrame))
	}
	if state.Snapshot().Frames != 0 {
		t.Error("echo was parsed as a frame")
	}
	if !state.Configured() {
		t.Error("state should be configured after the echo")
	}

	r.Write(testFrame)
	if got := state.Measurement(); got != testMeasurement {
		t.Errorf("frame after echo not published: %+v", got)
	}
	if c := r.Statistics().Snapshot(); c.EchoBytes != uint64(len(testFrame)) {
		t.Errorf("EchoBytes = %d, want %d", c.EchoBytes, len(testFrame))
	}
}

func TestFrameReceiver_ShortChunkBeforeEchoIsParsed(t *testing.T) {
	state := NewSensorState()
	state.setPhase(PhaseAwaitingEcho)
	r := NewFrameReceiver(state, WithLogger(nil))

	if n := r.Receive(testFrame[:2]); n != 2 {
		t.Fatalf("marker consumed %d, want 2", n)
	}
	if state.Configured() {
		t.Error("a short chunk must not count as the echo")
	}
	if exp, _ := r.Progress(); exp != FramePayloadSize {
		t.Error("short chunk should have been parsed as a marker")
	}
}

func TestFrameReceiver_EchoClearsPartialFrame(t *testing.T) {
	echo := []byte{0x5A, 0x06, 0x03, 0x00, 0x00, 0x63}
	tests := []struct {
		name   string
		before []byte
	}{
		{"started frame", testFrame[:2]},
		{"held marker byte", testFrame[:1]},
		{"stray byte", []byte{0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewSensorState()
			state.setPhase(PhaseAwaitingEcho)
			r := NewFrameReceiver(state, WithLogger(nil))

			r.Write(tt.before)
			r.Write(echo)
			if !r.AwaitingHeader() {
				t.Fatal("receiver should search for a marker after the echo")
			}

			r.Write(testFrame)
			if got := state.Snapshot().Frames; got != 1 {
				t.Fatalf("Frames = %d, want 1", got)
			}
			if got := state.Measurement(); got != testMeasurement {
				t.Errorf("Measurement = %+v, want %+v", got, testMeasurement)
			}
			if c := r.Statistics().Snapshot(); c.ChecksumErrors != 0 {
				t.Errorf("ChecksumErrors = %d, want 0", c.ChecksumErrors)
			}
		})
	}
}

// ============================================================
// Ready Signal Tests
// ============================================================

func TestFrameReceiver_ReadySignalsCollapse(t *testing.T) {
	r, state := streamingReceiver()

	r.Write(bytes.Repeat(testFrame, 3))
	if state.Snapshot().Frames != 3 {
		t.Fatalf("Frames = %d, want 3", state.Snapshot().Frames)
	}
	expectReady(t, r)
	expectNotReady(t, r)
}

func TestFrameReceiver_ConcurrentReadersSeeWholeFrames(t *testing.T) {
	r, state := streamingReceiver()

	a := Measurement{DistanceRaw: 100, SignalStrength: 200, TemperatureRaw: 300}
	b := Measurement{DistanceRaw: 0xFFFF, SignalStrength: 0xFFFF, TemperatureRaw: 0xFFFF}
	frames := [][]byte{EncodeFrame(a), EncodeFrame(b)}

	done := make(chan struct{})
	var wg sync.WaitGroup
	var torn sync.Once
	var tornValue Measurement

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				m := state.Snapshot().Measurement
				if m != a && m != b && m != (Measurement{}) {
					torn.Do(func() { tornValue = m })
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		r.Write(frames[i%2])
	}
	close(done)
	wg.Wait()

	if tornValue != (Measurement{}) {
		t.Errorf("reader observed a mixed measurement: %+v", tornValue)
	}
	if state.Snapshot().Frames != 2000 {
		t.Errorf("Frames = %d, want 2000", state.Snapshot().Frames)
	}
}
