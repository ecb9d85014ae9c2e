// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package luna implements the serial protocol spoken by the Benewake TF-Luna
// single-point lidar.
//
// The package covers command packet encoding (host to device), incremental
// reassembly of measurement frames from an arbitrarily chunked byte stream
// (device to host), sample rate negotiation, and the lock-guarded sensor
// state that readers query. Transport setup is left to the caller; the core
// only needs something that implements Transport and a loop that feeds
// received bytes into a FrameReceiver (or a Sensor, which wires all of it).
package luna

import "time"

// Protocol framing
const (
	CommandHeader     = 0x5A   // first byte of every command packet and command response
	MeasurementHeader = 0x5959 // big-endian two byte marker of a measurement frame

	markerHigh = byte(MeasurementHeader >> 8)
	markerLow  = byte(MeasurementHeader & 0xFF)
)

// Size limits
const (
	MaxSendBufferSize = 32                    // largest command packet
	CommandOverhead   = 4                     // header + length + id + checksum
	MaxParamSize      = MaxSendBufferSize - 4 // 28
	MarkerSize        = 2
	FramePayloadSize  = 7 // distance, amplitude, temperature, checksum
	FrameSize         = MarkerSize + FramePayloadSize

	// ProbeEchoMinLength is the smallest chunk treated as the delayed echo
	// of the commands sent while the sensor was attaching.
	ProbeEchoMinLength = 6
)

// Link defaults
const (
	DefaultBaudRate     = 115200
	DefaultWriteTimeout = 10 * time.Second
)

// Sample rate limits. The device runs its internal clock at MaxSampleRate Hz
// and the frequency code written to it is MaxSampleRate / divisor.
const (
	MaxSampleRate = 500
	MinDivisor    = 2
	MaxDivisor    = 500
)

// Anomaly thresholds used by ValidateMeasurement
const (
	MinReliableAmplitude = 100
	SaturatedAmplitude   = 0xFFFF
	MaxRatedDistanceCm   = 800
	MinOperatingTempC    = -20.0
	MaxOperatingTempC    = 70.0
)
