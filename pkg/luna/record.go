// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one recorded measurement. Recordings are a CBOR sequence of
// integer-keyed maps: {0: unix_nanos, 1: distance, 2: amplitude, 3: temp}.
type Record struct {
	Timestamp      int64  `cbor:"0,keyasint"`
	DistanceRaw    uint16 `cbor:"1,keyasint"`
	SignalStrength uint16 `cbor:"2,keyasint"`
	TemperatureRaw uint16 `cbor:"3,keyasint"`
}

// NewRecord creates a record for m taken at ts
func NewRecord(m Measurement, ts time.Time) Record {
	return Record{
		Timestamp:      ts.UnixNano(),
		DistanceRaw:    m.DistanceRaw,
		SignalStrength: m.SignalStrength,
		TemperatureRaw: m.TemperatureRaw,
	}
}

// Measurement returns the recorded measurement
func (r Record) Measurement() Measurement {
	return Measurement{
		DistanceRaw:    r.DistanceRaw,
		SignalStrength: r.SignalStrength,
		TemperatureRaw: r.TemperatureRaw,
	}
}

// Time returns the recording timestamp
func (r Record) Time() time.Time {
	return time.Unix(0, r.Timestamp)
}

// RecordWriter appends records to a CBOR sequence
type RecordWriter struct {
	enc   *cbor.Encoder
	count int
}

// NewRecordWriter creates a writer encoding to w
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{enc: cbor.NewEncoder(w)}
}

// Write encodes one measurement
func (w *RecordWriter) Write(m Measurement, ts time.Time) error {
	if err := w.enc.Encode(NewRecord(m, ts)); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written
func (w *RecordWriter) Count() int {
	return w.count
}

// RecordReader reads records back from a CBOR sequence
type RecordReader struct {
	dec *cbor.Decoder
}

// NewRecordReader creates a reader decoding from r
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF when the sequence ends
func (r *RecordReader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}
