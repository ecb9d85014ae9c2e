// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/lunastat/pkg/luna"
	"github.com/sirupsen/logrus"
)

// logger carries CLI diagnostics to stderr; decoded output goes to stdout
var logger = logrus.New()

// setupLogger applies the level and format names
func setupLogger(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(lvl)
	logger.SetOutput(os.Stderr)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	}
	return nil
}

// lunaLogf routes protocol diagnostics into logger
func lunaLogf() luna.Logf {
	return logger.WithField("component", "luna").Infof
}
