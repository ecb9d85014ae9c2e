// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/Thermoquad/lunastat/pkg/luna"
)

// session is one open connection with a sensor attached to it
type session struct {
	conn   Connection
	info   string
	sensor *luna.Sensor

	metrics *metricsServer

	// readErr receives the error that ended the reader goroutine
	readErr chan error
}

// newSession attaches a sensor to conn without reading from it yet
func newSession(conn Connection, info string, opts ...luna.Option) *session {
	return &session{
		conn:    conn,
		info:    info,
		sensor:  luna.NewSensor(transportFor(conn), opts...),
		readErr: make(chan error, 1),
	}
}

// openSession opens the configured connection and attaches a sensor
func openSession(opts ...luna.Option) (*session, error) {
	conn, info, err := OpenConnection()
	if err != nil {
		return nil, err
	}
	return newSession(conn, info, sensorOptions(opts...)...), nil
}

// start runs the reader goroutine feeding received bytes to the sensor
func (s *session) start() {
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := s.conn.Read(buf)
			if n > 0 {
				s.sensor.Write(buf[:n])
			}
			if err != nil {
				s.readErr <- err
				return
			}
		}
	}()
}

// startProbed starts reading, probes the device and applies the rate
// divisor (0 leaves the device in trigger mode)
func (s *session) startProbed(divisor uint16) error {
	s.start()
	if err := s.sensor.Probe(); err != nil {
		return err
	}
	if divisor != 0 {
		if err := s.sensor.SetSampleRate(divisor); err != nil {
			return err
		}
	}
	return nil
}

// closed reports whether err is the normal end of the stream
func closed(err error) bool {
	return errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF)
}

// serveMetrics exposes the sensor on --metrics-addr when it is set
func (s *session) serveMetrics() error {
	if metricsAddr == "" {
		return nil
	}
	m, err := startMetrics(metricsAddr, s.sensor)
	if err != nil {
		return err
	}
	s.metrics = m
	return nil
}

func (s *session) Close() error {
	s.sensor.Detach()
	if s.metrics != nil {
		if err := s.metrics.Close(); err != nil {
			logger.WithError(err).Warn("Metrics server shutdown failed")
		}
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// printHeader prints the banner every streaming command starts with
func (s *session) printHeader(title string) {
	fmt.Printf("Lunastat - %s\n", title)
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Press Ctrl+C to exit\n\n")
}

// logReadErr logs the end of the stream
func logReadErr(err error) {
	if closed(err) {
		logger.Info("Connection closed")
		return
	}
	logger.WithError(err).Error("Read error")
}
