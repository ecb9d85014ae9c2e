// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDivisor   = errors.New("sample rate divisor out of range")
	ErrParameterTooLong = errors.New("command parameters too long")
	ErrIncompleteWrite  = errors.New("incomplete command write")
	ErrTransport        = errors.New("transport write failed")
	ErrNoTransport      = errors.New("no transport attached")
	ErrFrameChecksum    = errors.New("frame checksum mismatch")
	ErrInvalidChannel   = errors.New("invalid measurement channel")
	ErrUnknownCommand   = errors.New("unknown command id")
	ErrBufferOverflow   = errors.New("buffer capacity exceeded")
)

// TransportError carries the underlying failure of a transport write.
// errors.Is(err, ErrTransport) reports true for it.
type TransportError struct {
	Command CommandID
	Err     error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.Command, e.Err)
}

// Unwrap returns the underlying transport error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransport
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ChecksumError describes a rejected inbound frame or response.
// errors.Is(err, ErrFrameChecksum) reports true for it.
type ChecksumError struct {
	Expected uint8
	Received uint8
}

// Error implements the error interface
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%02X, got 0x%02X", e.Expected, e.Received)
}

// Is matches ErrFrameChecksum
func (e *ChecksumError) Is(target error) bool {
	return target == ErrFrameChecksum
}
