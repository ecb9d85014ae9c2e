// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"log"
	"time"
)

// Logf is a printf-style diagnostic logger
type Logf func(format string, v ...interface{})

// Option configures a Sensor or FrameReceiver
type Option func(*options)

type options struct {
	policy       ChecksumPolicy
	logf         Logf
	stats        *Statistics
	writeTimeout time.Duration
	onFrame      func(Measurement)
	onError      func(error)
}

func defaultOptions() options {
	return options{
		policy:       ChecksumPayload,
		logf:         log.Printf,
		writeTimeout: DefaultWriteTimeout,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.stats == nil {
		o.stats = NewStatistics(DefaultStatsWindow)
	}
	return o
}

// WithChecksumPolicy selects how inbound frames are validated
func WithChecksumPolicy(p ChecksumPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithLogger replaces the diagnostic logger. Passing nil mutes it.
func WithLogger(f Logf) Option {
	return func(o *options) {
		if f == nil {
			f = func(string, ...interface{}) {}
		}
		o.logf = f
	}
}

// WithStatistics shares a statistics tracker with the receiver
func WithStatistics(s *Statistics) Option {
	return func(o *options) {
		o.stats = s
	}
}

// WithWriteTimeout bounds each command write
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// WithFrameHandler registers a callback run for every published frame.
// It runs synchronously on the receive path and must not block.
func WithFrameHandler(f func(Measurement)) Option {
	return func(o *options) {
		o.onFrame = f
	}
}

// WithErrorHandler registers a callback for parse-time diagnostics such as
// checksum mismatches. It runs synchronously on the receive path.
func WithErrorHandler(f func(error)) Option {
	return func(o *options) {
		o.onError = f
	}
}
