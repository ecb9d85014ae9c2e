// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import "encoding/binary"

// Measurement is one decoded measurement frame. Values are raw device units:
// distance in centimetres, dimensionless signal amplitude, and die
// temperature in 1/8 °C offset by 256 °C.
type Measurement struct {
	DistanceRaw    uint16
	SignalStrength uint16
	TemperatureRaw uint16
}

// decodeMeasurement decodes the three little-endian fields of a frame payload
func decodeMeasurement(payload []byte) Measurement {
	return Measurement{
		DistanceRaw:    binary.LittleEndian.Uint16(payload[0:2]),
		SignalStrength: binary.LittleEndian.Uint16(payload[2:4]),
		TemperatureRaw: binary.LittleEndian.Uint16(payload[4:6]),
	}
}

// EncodeFrame builds the 9-byte wire frame for m with a payload checksum.
// Useful for simulators and tests.
func EncodeFrame(m Measurement) []byte {
	frame := make([]byte, FrameSize)
	frame[0] = markerHigh
	frame[1] = markerLow
	binary.LittleEndian.PutUint16(frame[2:4], m.DistanceRaw)
	binary.LittleEndian.PutUint16(frame[4:6], m.SignalStrength)
	binary.LittleEndian.PutUint16(frame[6:8], m.TemperatureRaw)
	frame[8] = Checksum(frame[2:8])
	return frame
}

// DistanceCentimeters returns the distance in centimetres
func (m Measurement) DistanceCentimeters() int {
	return int(m.DistanceRaw)
}

// DistanceMeters returns the distance in metres
func (m Measurement) DistanceMeters() float64 {
	return float64(m.DistanceRaw) / 100.0
}

// TemperatureCelsius converts the raw die temperature to °C
func (m Measurement) TemperatureCelsius() float64 {
	return float64(m.TemperatureRaw)/8.0 - 256.0
}

// TemperatureFahrenheit converts the raw die temperature to °F
func (m Measurement) TemperatureFahrenheit() float64 {
	return m.TemperatureCelsius()*9.0/5.0 + 32.0
}
