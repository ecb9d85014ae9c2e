// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import "fmt"

// FrequencyCode maps a sample rate divisor to the device frequency code.
// Divisor 0 selects trigger mode (code 0); divisors 2..500 select
// continuous sampling at 500/divisor Hz.
func FrequencyCode(divisor uint16) (uint16, error) {
	if divisor == 0 {
		return 0, nil
	}
	if divisor < MinDivisor || divisor > MaxDivisor {
		return 0, fmt.Errorf("%w: %d (valid 0 or %d-%d)", ErrInvalidDivisor, divisor, MinDivisor, MaxDivisor)
	}
	return MaxSampleRate / divisor, nil
}

// SamplingController pushes sample rate changes to the device and records
// them in the sensor state once the device write succeeded.
type SamplingController struct {
	encoder *Encoder
	state   *SensorState
}

// NewSamplingController creates a controller sending through encoder
func NewSamplingController(encoder *Encoder, state *SensorState) *SamplingController {
	return &SamplingController{encoder: encoder, state: state}
}

// SetSampleRate validates divisor, sends SET_SAMPLE_FREQUENCY and, only if
// the send succeeded, updates the frequency code, trigger mode and divisor
// together. On any error the previous state is left untouched.
func (c *SamplingController) SetSampleRate(divisor uint16) error {
	code, err := FrequencyCode(divisor)
	if err != nil {
		return err
	}
	if err := c.encoder.Send(CmdSetSampleFrequency, FrequencyParams(code)); err != nil {
		return fmt.Errorf("failed to set sample frequency: %w", err)
	}
	c.state.applySampling(code, code == 0, int(divisor))
	return nil
}

// SetTriggerMode switches the device to sampling on request only
func (c *SamplingController) SetTriggerMode() error {
	return c.SetSampleRate(0)
}
