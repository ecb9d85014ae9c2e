// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import "fmt"

// fixedBuffer is a bounded byte buffer with compile-time backing storage.
// Appends beyond limit are refused rather than truncated.
type fixedBuffer struct {
	data  [MaxSendBufferSize]byte
	n     int
	limit int
}

func newFixedBuffer(limit int) fixedBuffer {
	if limit <= 0 || limit > MaxSendBufferSize {
		limit = MaxSendBufferSize
	}
	return fixedBuffer{limit: limit}
}

// Append copies p into the buffer. Nothing is written on overflow.
func (b *fixedBuffer) Append(p ...byte) error {
	if b.n+len(p) > b.limit {
		return fmt.Errorf("%w: %d + %d > %d", ErrBufferOverflow, b.n, len(p), b.limit)
	}
	b.n += copy(b.data[b.n:], p)
	return nil
}

// Len returns the number of buffered bytes
func (b *fixedBuffer) Len() int {
	return b.n
}

// Remaining returns how many bytes can still be appended
func (b *fixedBuffer) Remaining() int {
	return b.limit - b.n
}

// Bytes returns the buffered bytes. The slice aliases the buffer and is only
// valid until the next Append or Reset.
func (b *fixedBuffer) Bytes() []byte {
	return b.data[:b.n]
}

// Reset empties the buffer without changing its limit
func (b *fixedBuffer) Reset() {
	b.n = 0
}
