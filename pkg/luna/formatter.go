// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"fmt"
	"strings"
	"time"
)

// FormatMeasurement formats a measurement into a human-readable line
func FormatMeasurement(m Measurement, ts time.Time) string {
	return fmt.Sprintf("[%s] MEASUREMENT dist=%d cm (%.2f m) amp=%d temp=%.1f°C (raw %d)\n",
		ts.Format("15:04:05.000"),
		m.DistanceRaw, m.DistanceMeters(),
		m.SignalStrength,
		m.TemperatureCelsius(), m.TemperatureRaw)
}

// FormatCommand formats a command packet or response
func FormatCommand(p *CommandPacket) string {
	result := fmt.Sprintf("%s (0x%02X) len=%d checksum=0x%02X\n", p.ID, uint8(p.ID), p.Length, p.Checksum)

	switch p.ID {
	case CmdGetVersion:
		if v, err := ParseVersion(p); err == nil {
			return result + fmt.Sprintf("  Version: %s\n", v)
		}
	case CmdSetSampleFrequency:
		if len(p.Params) >= 2 {
			code := uint16(p.Params[0]) | uint16(p.Params[1])<<8
			if code == 0 {
				return result + "  Frequency: trigger mode\n"
			}
			return result + fmt.Sprintf("  Frequency: %d Hz\n", code)
		}
	}

	if len(p.Params) == 0 {
		return result + "  (no payload)\n"
	}
	return result + "  Params: " + FormatHex(p.Params) + "\n"
}

// FormatHex renders bytes as space separated hex, 16 per line
func FormatHex(data []byte) string {
	var b strings.Builder
	for i, v := range data {
		if i > 0 && i%16 == 0 {
			b.WriteString("\n          ")
		} else if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}
