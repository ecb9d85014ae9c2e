// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package luna

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultStatsWindow is the number of recent distances kept for the rolling
// mean and standard deviation
const DefaultStatsWindow = 100

// Counters is a point-in-time copy of the receiver statistics
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	Frames         uint64
	ChecksumErrors uint64
	ResyncBytes    uint64 // bytes discarded while searching for a marker
	IgnoredBytes   uint64 // bytes received before the driver was ready
	EchoBytes      uint64 // bytes of the discarded probe echo
	Anomalies      uint64
	WeakSignal     uint64
	Saturated      uint64
	OutOfRange     uint64
	BadTemperature uint64

	FrameRate float64 // frames/sec
	ErrorRate float64 // checksum errors/sec

	DistanceMean   float64 // cm, over the rolling window
	DistanceStdDev float64
	WindowSize     int
}

// Statistics tracks frame counts, error rates and a rolling distance
// summary. It is safe for concurrent use.
type Statistics struct {
	mu       sync.Mutex
	c        Counters
	window   []float64
	capacity int
	next     int
}

// NewStatistics creates a statistics tracker with a rolling window of the
// given size (DefaultStatsWindow if size <= 0)
func NewStatistics(size int) *Statistics {
	if size <= 0 {
		size = DefaultStatsWindow
	}
	now := time.Now()
	return &Statistics{
		c:        Counters{StartTime: now, LastUpdateTime: now},
		window:   make([]float64, 0, size),
		capacity: size,
	}
}

// RecordFrame counts a published frame and its anomalies
func (s *Statistics) RecordFrame(m Measurement, anomalies []ValidationError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.Frames++
	s.c.LastUpdateTime = time.Now()

	for _, a := range anomalies {
		s.c.Anomalies++
		switch a.Type {
		case AnomalyWeakSignal:
			s.c.WeakSignal++
		case AnomalySaturatedSignal:
			s.c.Saturated++
		case AnomalyOutOfRange:
			s.c.OutOfRange++
		case AnomalyTemperature:
			s.c.BadTemperature++
		}
	}

	d := float64(m.DistanceRaw)
	if len(s.window) < s.capacity {
		s.window = append(s.window, d)
	} else {
		s.window[s.next] = d
	}
	s.next = (s.next + 1) % s.capacity
}

// RecordChecksumError counts a frame rejected by the checksum policy
func (s *Statistics) RecordChecksumError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.ChecksumErrors++
	s.c.LastUpdateTime = time.Now()
}

// RecordResync counts bytes dropped during marker search
func (s *Statistics) RecordResync(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.ResyncBytes += uint64(n)
}

// RecordIgnored counts bytes dropped before the driver was ready
func (s *Statistics) RecordIgnored(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.IgnoredBytes += uint64(n)
}

// RecordEcho counts bytes of the discarded probe echo
func (s *Statistics) RecordEcho(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.EchoBytes += uint64(n)
}

// Snapshot returns the counters with rates and the distance summary
// computed at call time
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.c
	elapsed := time.Since(c.StartTime).Seconds()
	if elapsed > 0 {
		c.FrameRate = float64(c.Frames) / elapsed
		c.ErrorRate = float64(c.ChecksumErrors) / elapsed
	}
	c.WindowSize = len(s.window)
	switch len(s.window) {
	case 0:
	case 1:
		c.DistanceMean = s.window[0]
	default:
		c.DistanceMean, c.DistanceStdDev = stat.MeanStdDev(s.window, nil)
	}
	return c
}

// Reset clears all counters and the rolling window
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.c = Counters{StartTime: now, LastUpdateTime: now}
	s.window = s.window[:0]
	s.next = 0
}

// String returns a formatted statistics summary
func (c Counters) String() string {
	var validPercent, errorPercent float64
	if total := c.Frames + c.ChecksumErrors; total > 0 {
		validPercent = float64(c.Frames) * 100.0 / float64(total)
		errorPercent = float64(c.ChecksumErrors) * 100.0 / float64(total)
	}

	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Frames:          %8d (%.1f%%)\n", c.Frames, validPercent)
	if c.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", c.ChecksumErrors, errorPercent)
	}
	if c.ResyncBytes > 0 {
		result += fmt.Sprintf("Resync Bytes:    %8d\n", c.ResyncBytes)
	}
	if c.IgnoredBytes > 0 || c.EchoBytes > 0 {
		result += fmt.Sprintf("Ignored Bytes:   %8d (echo %d)\n", c.IgnoredBytes, c.EchoBytes)
	}
	if c.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d\n", c.Anomalies)
		if c.WeakSignal > 0 {
			result += fmt.Sprintf("  Weak Signal:      %5d\n", c.WeakSignal)
		}
		if c.Saturated > 0 {
			result += fmt.Sprintf("  Saturated:        %5d\n", c.Saturated)
		}
		if c.OutOfRange > 0 {
			result += fmt.Sprintf("  Out Of Range:     %5d\n", c.OutOfRange)
		}
		if c.BadTemperature > 0 {
			result += fmt.Sprintf("  Temperature:      %5d\n", c.BadTemperature)
		}
	}
	if c.WindowSize > 0 {
		result += fmt.Sprintf("Distance:        %8.1f cm ± %.1f (last %d)\n", c.DistanceMean, c.DistanceStdDev, c.WindowSize)
	}
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", c.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", c.ErrorRate)
	result += "================================\n"

	return result
}
