// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Lunastat - TF-Luna Lidar Protocol Tool
//
// A CLI tool for decoding TF-Luna measurement frames and sending sensor
// configuration commands over a serial port or WebSocket bridge.

package main

import (
	"os"

	"github.com/Thermoquad/lunastat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
