// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRecord_WriteThenRead(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	input := []Measurement{
		testMeasurement,
		{DistanceRaw: 0, SignalStrength: 0xFFFF, TemperatureRaw: 0},
		{DistanceRaw: 1200, SignalStrength: 42, TemperatureRaw: 2300},
	}

	var buf bytes.Buffer
	w := NewRecordWriter(&buf)
	for i, m := range input {
		if err := w.Write(m, base.Add(time.Duration(i)*10*time.Millisecond)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if w.Count() != len(input) {
		t.Errorf("Count = %d, want %d", w.Count(), len(input))
	}

	r := NewRecordReader(&buf)
	var got []Measurement
	var stamps []time.Time
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, rec.Measurement())
		stamps = append(stamps, rec.Time())
	}

	if diff := cmp.Diff(input, got); diff != "" {
		t.Errorf("measurements mismatch (-want +got):\n%s", diff)
	}
	if !stamps[2].Equal(base.Add(20 * time.Millisecond)) {
		t.Errorf("timestamp = %v", stamps[2])
	}
}

func TestRecord_WireKeys(t *testing.T) {
	var buf bytes.Buffer
	NewRecordWriter(&buf).Write(Measurement{DistanceRaw: 1, SignalStrength: 2, TemperatureRaw: 3}, time.Unix(0, 0))

	// map(4) {0: 0, 1: 1, 2: 2, 3: 3}
	want := []byte{0xA4, 0x00, 0x00, 0x01, 0x01, 0x02, 0x02, 0x03, 0x03}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("encoded = % X, want % X", buf.Bytes(), want)
	}
}

func TestRecord_CorruptInput(t *testing.T) {
	r := NewRecordReader(bytes.NewReader([]byte{0xA4, 0x00}))
	if _, err := r.Next(); err == nil || err == io.EOF {
		t.Errorf("Next on truncated record = %v, want decode error", err)
	}
}
