// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import "fmt"

// LogLevel is a zerolog level name accepted in configuration.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevels = []LogLevel{LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}

// ErrInvalidLogLevel is returned by ParseLogLevel.
var ErrInvalidLogLevel = Error{
	Field:   "LogLevel",
	Message: fmt.Sprintf("invalid log level (must be one of %v)", logLevels),
}

// ParseLogLevel parses s into a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	for _, l := range logLevels {
		if LogLevel(s) == l {
			return l, nil
		}
	}
	return "", ErrInvalidLogLevel
}
