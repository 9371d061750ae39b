// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ManuGH/xgtranscode/internal/log"
)

// fromEnv returns the parsed value of key, or def when the variable is
// unset, empty or malformed. A malformed value is logged at warn level.
func fromEnv[T any](key string, def T, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		logger.Trace().Str("key", key).Interface("default", def).Str("source", "default").Msg("env not set")
		return def
	}
	v, err := parse(raw)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("key", key).
			Str("value", raw).
			Interface("default", def).
			Msg("ignoring malformed environment variable")
		return def
	}
	logger.Debug().Str("key", key).Interface("value", v).Str("source", "environment").Msg("env override")
	return v
}

// ParseString reads key from the environment. Empty counts as unset.
func ParseString(key, def string) string {
	return fromEnv(key, def, func(s string) (string, error) { return s, nil })
}

// ParseInt reads a base-10 integer from the environment.
func ParseInt(key string, def int) int {
	return fromEnv(key, def, strconv.Atoi)
}

// ParseBool accepts true/false, 1/0, yes/no and on/off in any case.
func ParseBool(key string, def bool) bool {
	return fromEnv(key, def, parseBool)
}

// ParseFloat reads a float64 from the environment.
func ParseFloat(key string, def float64) float64 {
	return fromEnv(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
