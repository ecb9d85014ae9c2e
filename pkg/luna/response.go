// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import "fmt"

// Response decoder states (internal)
const (
	respIdle = iota
	respLength
	respBody
)

// ResponseDecoder reassembles command responses (0x5A packets) one byte at
// a time. It is used on the synchronous command path, before a FrameReceiver
// owns the stream; measurement frames seen while idle are skipped.
type ResponseDecoder struct {
	state  int
	buffer fixedBuffer
	length int
}

// NewResponseDecoder creates a new response decoder
func NewResponseDecoder() *ResponseDecoder {
	return &ResponseDecoder{
		state:  respIdle,
		buffer: newFixedBuffer(MaxSendBufferSize),
	}
}

// Reset returns the decoder to idle
func (d *ResponseDecoder) Reset() {
	d.state = respIdle
	d.length = 0
	d.buffer.Reset()
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed packet, or nil if the packet is incomplete.
// Returns an error if the packet is malformed; the decoder is reset.
func (d *ResponseDecoder) DecodeByte(b byte) (*CommandPacket, error) {
	switch d.state {
	case respIdle:
		if b == CommandHeader {
			d.buffer.Reset()
			if err := d.buffer.Append(b); err != nil {
				return nil, err
			}
			d.state = respLength
		}
		return nil, nil

	case respLength:
		if b < CommandOverhead || b > MaxSendBufferSize {
			d.Reset()
			return nil, fmt.Errorf("invalid response length: %d", b)
		}
		if err := d.buffer.Append(b); err != nil {
			d.Reset()
			return nil, err
		}
		d.length = int(b)
		d.state = respBody
		return nil, nil

	case respBody:
		if err := d.buffer.Append(b); err != nil {
			d.Reset()
			return nil, err
		}
		if d.buffer.Len() < d.length {
			return nil, nil
		}
		packet, err := ParseCommand(d.buffer.Bytes())
		d.Reset()
		return packet, err

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}
