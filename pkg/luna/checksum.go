// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import "fmt"

// Checksum computes the protocol's 8-bit additive checksum: the sum of all
// bytes, wrapping at 256.
func Checksum(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return sum
}

// ChecksumPolicy selects how inbound measurement frames are validated.
type ChecksumPolicy int

const (
	// ChecksumPayload sums the six data bytes (frame bytes 2-7) and compares
	// the result against the trailing checksum byte.
	ChecksumPayload ChecksumPolicy = iota
	// ChecksumFrame also includes the two marker bytes in the sum, which is
	// what the vendor's reference tooling computes.
	ChecksumFrame
	// ChecksumOff publishes frames without looking at the checksum byte.
	ChecksumOff
)

// String returns the policy name used by the CLI and config file
func (p ChecksumPolicy) String() string {
	switch p {
	case ChecksumPayload:
		return "payload"
	case ChecksumFrame:
		return "frame"
	case ChecksumOff:
		return "off"
	default:
		return fmt.Sprintf("ChecksumPolicy(%d)", int(p))
	}
}

// ParseChecksumPolicy converts a policy name back into a ChecksumPolicy
func ParseChecksumPolicy(name string) (ChecksumPolicy, error) {
	switch name {
	case "", "payload":
		return ChecksumPayload, nil
	case "frame":
		return ChecksumFrame, nil
	case "off", "none":
		return ChecksumOff, nil
	}
	return ChecksumPayload, fmt.Errorf("unknown checksum policy %q (expected payload, frame or off)", name)
}

// verifyFrame checks a completed frame payload (distance..checksum) against
// the policy. It returns the expected and received checksum bytes.
func (p ChecksumPolicy) verifyFrame(payload []byte) (ok bool, expected, received uint8) {
	received = payload[FramePayloadSize-1]
	switch p {
	case ChecksumOff:
		return true, received, received
	case ChecksumFrame:
		expected = markerHigh + markerLow + Checksum(payload[:FramePayloadSize-1])
	default:
		expected = Checksum(payload[:FramePayloadSize-1])
	}
	return expected == received, expected, received
}
