// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"encoding/binary"
	"fmt"
)

// CommandID identifies a host to device command
type CommandID uint8

// Supported commands
const (
	CmdGetVersion         CommandID = 0x01
	CmdSoftReset          CommandID = 0x02
	CmdSetSampleFrequency CommandID = 0x03
	CmdSetSampleTrigger   CommandID = 0x04
)

// Valid reports whether the id is one of the supported commands
func (c CommandID) Valid() bool {
	switch c {
	case CmdGetVersion, CmdSoftReset, CmdSetSampleFrequency, CmdSetSampleTrigger:
		return true
	}
	return false
}

// WireByte returns the byte written at offset 2 of the packet
func (c CommandID) WireByte() (byte, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, uint8(c))
	}
	return byte(c), nil
}

// String returns the human-readable command name
func (c CommandID) String() string {
	switch c {
	case CmdGetVersion:
		return "GET_VERSION"
	case CmdSoftReset:
		return "SOFT_RESET"
	case CmdSetSampleFrequency:
		return "SET_SAMPLE_FREQUENCY"
	case CmdSetSampleTrigger:
		return "SET_SAMPLE_TRIGGER"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(c))
	}
}

// CommandPacket is a decoded command or command response
type CommandPacket struct {
	ID       CommandID
	Length   uint8
	Params   []byte
	Checksum uint8
}

// BuildCommand encodes a command packet:
//
//	0x5A | 4+len(params) | id | params... | checksum
//
// The checksum covers every preceding byte of the packet.
func BuildCommand(id CommandID, params []byte) ([]byte, error) {
	wire, err := id.WireByte()
	if err != nil {
		return nil, err
	}
	if len(params) > MaxParamSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrParameterTooLong, len(params), MaxParamSize)
	}

	buf := newFixedBuffer(MaxSendBufferSize)
	length := uint8(CommandOverhead + len(params))
	if err := buf.Append(CommandHeader, length, wire); err != nil {
		return nil, err
	}
	if err := buf.Append(params...); err != nil {
		return nil, err
	}
	if err := buf.Append(Checksum(buf.Bytes())); err != nil {
		return nil, err
	}

	packet := make([]byte, buf.Len())
	copy(packet, buf.Bytes())
	return packet, nil
}

// ParseCommand decodes one complete packet in the command layout. Device
// responses share this layout, so it serves both directions.
func ParseCommand(data []byte) (*CommandPacket, error) {
	if len(data) < CommandOverhead {
		return nil, fmt.Errorf("packet too short: %d bytes (min %d)", len(data), CommandOverhead)
	}
	if data[0] != CommandHeader {
		return nil, fmt.Errorf("invalid header byte: 0x%02X", data[0])
	}
	length := data[1]
	if int(length) != len(data) {
		return nil, fmt.Errorf("length mismatch: header says %d, got %d bytes", length, len(data))
	}

	last := len(data) - 1
	if sum := Checksum(data[:last]); sum != data[last] {
		return nil, &ChecksumError{Expected: sum, Received: data[last]}
	}

	id := CommandID(data[2])
	if !id.Valid() {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, data[2])
	}

	params := make([]byte, last-3)
	copy(params, data[3:last])
	return &CommandPacket{
		ID:       id,
		Length:   length,
		Params:   params,
		Checksum: data[last],
	}, nil
}

// FrequencyParams encodes a frequency code as the little-endian parameter
// pair of SET_SAMPLE_FREQUENCY.
func FrequencyParams(code uint16) []byte {
	params := make([]byte, 2)
	binary.LittleEndian.PutUint16(params, code)
	return params
}

// Version is the firmware version reported in a GET_VERSION response
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// String formats the version as vMAJOR.MINOR.PATCH
func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion extracts the firmware version from a GET_VERSION response.
// The response carries patch, minor and major in that order.
func ParseVersion(p *CommandPacket) (Version, error) {
	if p.ID != CmdGetVersion {
		return Version{}, fmt.Errorf("expected %s response, got %s", CmdGetVersion, p.ID)
	}
	if len(p.Params) < 3 {
		return Version{}, fmt.Errorf("version response too short: %d bytes", len(p.Params))
	}
	return Version{Patch: p.Params[0], Minor: p.Params[1], Major: p.Params[2]}, nil
}
