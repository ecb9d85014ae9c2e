// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Thermoquad/lunastat/pkg/luna"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// sensorCollector exports a sensor's statistics and latest measurement.
// Values are read at scrape time.
type sensorCollector struct {
	sensor *luna.Sensor

	frames         *prometheus.Desc
	checksumErrors *prometheus.Desc
	resyncBytes    *prometheus.Desc
	ignoredBytes   *prometheus.Desc
	anomalies      *prometheus.Desc
	distance       *prometheus.Desc
	amplitude      *prometheus.Desc
	temperature    *prometheus.Desc
	distanceMean   *prometheus.Desc
	distanceStdDev *prometheus.Desc
	frequency      *prometheus.Desc
	configured     *prometheus.Desc
}

func newSensorCollector(s *luna.Sensor) *sensorCollector {
	return &sensorCollector{
		sensor:         s,
		frames:         prometheus.NewDesc("lunastat_frames_total", "Measurement frames decoded", nil, nil),
		checksumErrors: prometheus.NewDesc("lunastat_checksum_errors_total", "Frames dropped for a checksum mismatch", nil, nil),
		resyncBytes:    prometheus.NewDesc("lunastat_resync_bytes_total", "Bytes discarded while searching for a frame marker", nil, nil),
		ignoredBytes:   prometheus.NewDesc("lunastat_ignored_bytes_total", "Bytes received before the driver was ready", nil, nil),
		anomalies:      prometheus.NewDesc("lunastat_anomalies_total", "Measurements outside the rated envelope", []string{"type"}, nil),
		distance:       prometheus.NewDesc("lunastat_distance_centimeters", "Latest measured distance", nil, nil),
		amplitude:      prometheus.NewDesc("lunastat_signal_strength", "Latest signal amplitude", nil, nil),
		temperature:    prometheus.NewDesc("lunastat_temperature_celsius", "Latest die temperature", nil, nil),
		distanceMean:   prometheus.NewDesc("lunastat_distance_mean_centimeters", "Rolling mean distance", nil, nil),
		distanceStdDev: prometheus.NewDesc("lunastat_distance_stddev_centimeters", "Rolling distance standard deviation", nil, nil),
		frequency:      prometheus.NewDesc("lunastat_frequency_code", "Frequency code last written to the sensor (0 = trigger mode)", nil, nil),
		configured:     prometheus.NewDesc("lunastat_configured", "1 once the probe echo has been consumed", nil, nil),
	}
}

// Describe lists every descriptor; the measurement gauges are only
// collected once a frame has arrived.
func (c *sensorCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.frames, c.checksumErrors, c.resyncBytes, c.ignoredBytes, c.anomalies,
		c.distance, c.amplitude, c.temperature,
		c.distanceMean, c.distanceStdDev, c.frequency, c.configured,
	} {
		ch <- d
	}
}

func (c *sensorCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.sensor.Statistics()
	snap := c.sensor.State().Snapshot()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.frames, stats.Frames)
	counter(c.checksumErrors, stats.ChecksumErrors)
	counter(c.resyncBytes, stats.ResyncBytes)
	counter(c.ignoredBytes, stats.IgnoredBytes+stats.EchoBytes)
	counter(c.anomalies, stats.WeakSignal, "weak_signal")
	counter(c.anomalies, stats.Saturated, "saturated")
	counter(c.anomalies, stats.OutOfRange, "out_of_range")
	counter(c.anomalies, stats.BadTemperature, "temperature")

	if snap.Frames > 0 {
		gauge(c.distance, float64(snap.Measurement.DistanceRaw))
		gauge(c.amplitude, float64(snap.Measurement.SignalStrength))
		gauge(c.temperature, snap.Measurement.TemperatureCelsius())
	}
	if stats.WindowSize > 0 {
		gauge(c.distanceMean, stats.DistanceMean)
		gauge(c.distanceStdDev, stats.DistanceStdDev)
	}
	gauge(c.frequency, float64(snap.FrequencyCode))

	configured := 0.0
	if snap.Phase == luna.PhaseStreaming {
		configured = 1
	}
	gauge(c.configured, configured)
}

// metricsHandler serves the sensor metrics plus Go runtime metrics
func metricsHandler(s *luna.Sensor) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		newSensorCollector(s),
		collectors.NewGoCollector(),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// metricsServer exposes /metrics for one sensor
type metricsServer struct {
	srv *http.Server
	ln  net.Listener
}

func startMetrics(addr string, s *luna.Sensor) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler(s))
	m := &metricsServer{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}

	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server stopped")
		}
	}()
	logger.Infof("Serving metrics on http://%s/metrics", ln.Addr())
	return m, nil
}

// Addr returns the bound listen address
func (m *metricsServer) Addr() string {
	return m.ln.Addr().String()
}

func (m *metricsServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.srv.Shutdown(ctx)
}
