// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"fmt"
	"time"
)

// Transport is the outbound half of the link. Write must return after at
// most timeout, reporting how many bytes reached the device.
type Transport interface {
	Write(p []byte, timeout time.Duration) (int, error)
}

// TransportFunc adapts a function to the Transport interface
type TransportFunc func(p []byte, timeout time.Duration) (int, error)

// Write calls f(p, timeout)
func (f TransportFunc) Write(p []byte, timeout time.Duration) (int, error) {
	return f(p, timeout)
}

// Encoder builds command packets and hands them to the transport.
// It keeps no state about the device; callers update SensorState after a
// successful Send.
type Encoder struct {
	transport Transport
	timeout   time.Duration
}

// NewEncoder creates an encoder writing to t with DefaultWriteTimeout
func NewEncoder(t Transport) *Encoder {
	return &Encoder{
		transport: t,
		timeout:   DefaultWriteTimeout,
	}
}

// SetTimeout changes the bound on each transport write. Non-positive values
// restore DefaultWriteTimeout.
func (e *Encoder) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	e.timeout = timeout
}

// Timeout returns the current write bound
func (e *Encoder) Timeout() time.Duration {
	return e.timeout
}

// Send encodes the command and writes it in a single transport call.
// There is no retry; a short write yields ErrIncompleteWrite and a failed
// write yields a *TransportError.
func (e *Encoder) Send(id CommandID, params []byte) error {
	packet, err := BuildCommand(id, params)
	if err != nil {
		return err
	}
	if e.transport == nil {
		return ErrNoTransport
	}

	n, err := e.transport.Write(packet, e.timeout)
	if err != nil {
		return &TransportError{Command: id, Err: err}
	}
	if n < len(packet) {
		return fmt.Errorf("%w: %s wrote %d of %d bytes", ErrIncompleteWrite, id, n, len(packet))
	}
	return nil
}
