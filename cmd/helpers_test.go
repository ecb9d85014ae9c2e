// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/lunastat/pkg/luna"
)

// replyDelay mimics the sensor's response latency; the probe echo must
// arrive after the probe has returned
const replyDelay = 20 * time.Millisecond

// fakeDevice is an in-memory Connection that answers commands the way a
// sensor would. Replies are delivered in order, one Read per reply.
type fakeDevice struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu       sync.Mutex
	commands []luna.CommandID
	respond  func(p *luna.CommandPacket) [][]byte

	replies chan []byte
	done    chan struct{}
}

func newFakeDevice(respond func(p *luna.CommandPacket) [][]byte) *fakeDevice {
	r, w := io.Pipe()
	d := &fakeDevice{
		r:       r,
		w:       w,
		respond: respond,
		replies: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	go func() {
		for {
			select {
			case reply := <-d.replies:
				time.Sleep(replyDelay)
				if _, err := d.w.Write(reply); err != nil {
					return
				}
			case <-d.done:
				return
			}
		}
	}()
	return d
}

// lunaDevice echoes configuration commands and answers triggers with frame
func lunaDevice(frame []byte) func(p *luna.CommandPacket) [][]byte {
	return func(p *luna.CommandPacket) [][]byte {
		switch p.ID {
		case luna.CmdSetSampleFrequency:
			echo, _ := luna.BuildCommand(p.ID, p.Params)
			return [][]byte{echo}
		case luna.CmdSetSampleTrigger:
			return [][]byte{frame}
		}
		return nil
	}
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	return d.r.Read(p)
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	return d.WriteTimeout(p, time.Second)
}

func (d *fakeDevice) WriteTimeout(p []byte, _ time.Duration) (int, error) {
	packet, err := luna.ParseCommand(p)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	d.commands = append(d.commands, packet.ID)
	d.mu.Unlock()

	if d.respond != nil {
		for _, reply := range d.respond(packet) {
			d.replies <- reply
		}
	}
	return len(p), nil
}

func (d *fakeDevice) Commands() []luna.CommandID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]luna.CommandID(nil), d.commands...)
}

func (d *fakeDevice) Close() error {
	select {
	case <-d.done:
	default:
		close(d.done)
	}
	d.w.Close()
	return d.r.Close()
}

var testMeasurement = luna.Measurement{DistanceRaw: 300, SignalStrength: 1000, TemperatureRaw: 0x08C8}

// versionReply is a GET_VERSION response for firmware v3.2.1
var versionReply = []byte{0x5A, 0x07, 0x01, 0x01, 0x02, 0x03, 0x68}
