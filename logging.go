// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
)

// LoggerModule is the go-logging module used by the package.
const LoggerModule = "actorrpc"

var log = logging.MustGetLogger(LoggerModule)

var stderrFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.4s} %{module} ▶ %{message}`,
)

// SetupLogging installs a formatted backend writing to w (stderr when nil).
// ACTORRPC_LOG_LEVEL overrides level when it names a go-logging level.
func SetupLogging(w io.Writer, prefix string, level logging.Level) *logging.Logger {
	if w == nil {
		w = os.Stderr
	}
	backend := logging.NewBackendFormatter(logging.NewLogBackend(w, prefix, 0), stderrFormat)
	leveled := logging.AddModuleLevel(backend)
	if env := os.Getenv("ACTORRPC_LOG_LEVEL"); env != "" {
		if l, err := logging.LogLevel(strings.ToUpper(env)); err == nil {
			level = l
		}
	}
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)
	return log
}

// ParseLogLevel maps a level name such as "debug" or "WARNING" to a go-logging level.
func ParseLogLevel(name string) (logging.Level, error) {
	return logging.LogLevel(strings.ToUpper(name))
}
