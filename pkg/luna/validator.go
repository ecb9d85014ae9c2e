// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import "fmt"

// AnomalyType represents different kinds of suspicious measurement values
type AnomalyType int

const (
	AnomalyWeakSignal AnomalyType = iota
	AnomalySaturatedSignal
	AnomalyOutOfRange
	AnomalyTemperature
)

// String returns a short anomaly name
func (a AnomalyType) String() string {
	switch a {
	case AnomalyWeakSignal:
		return "weak signal"
	case AnomalySaturatedSignal:
		return "saturated signal"
	case AnomalyOutOfRange:
		return "out of range"
	case AnomalyTemperature:
		return "temperature"
	default:
		return "unknown"
	}
}

// ValidationError describes an anomaly found in a decoded measurement
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMeasurement checks a measurement against the sensor's rated
// operating envelope. Anomalies are diagnostic only: the device still
// reports such frames and they are still published.
func ValidateMeasurement(m Measurement) []ValidationError {
	errors := []ValidationError{}

	switch {
	case m.SignalStrength == SaturatedAmplitude:
		errors = append(errors, ValidationError{
			Type:    AnomalySaturatedSignal,
			Message: "Signal amplitude saturated, distance unreliable",
			Details: map[string]interface{}{"amplitude": m.SignalStrength},
		})
	case m.SignalStrength < MinReliableAmplitude:
		errors = append(errors, ValidationError{
			Type:    AnomalyWeakSignal,
			Message: fmt.Sprintf("Weak signal amplitude=%d (min %d)", m.SignalStrength, MinReliableAmplitude),
			Details: map[string]interface{}{"amplitude": m.SignalStrength, "min": MinReliableAmplitude},
		})
	}

	if m.DistanceRaw > MaxRatedDistanceCm {
		errors = append(errors, ValidationError{
			Type:    AnomalyOutOfRange,
			Message: fmt.Sprintf("Distance %d cm beyond rated range (max %d)", m.DistanceRaw, MaxRatedDistanceCm),
			Details: map[string]interface{}{"distance": m.DistanceRaw, "max": MaxRatedDistanceCm},
		})
	}

	if temp := m.TemperatureCelsius(); temp < MinOperatingTempC || temp > MaxOperatingTempC {
		errors = append(errors, ValidationError{
			Type:    AnomalyTemperature,
			Message: fmt.Sprintf("Temperature %.1f°C outside operating range", temp),
			Details: map[string]interface{}{"value": temp, "min": MinOperatingTempC, "max": MaxOperatingTempC},
		})
	}

	return errors
}
