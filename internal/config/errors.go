// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "errors"

var (
	// ErrUnknownConfigField marks a configuration file key that no setting
	// consumes.
	ErrUnknownConfigField = errors.New("unknown config field")
	// ErrUnsupportedFormat is returned for configuration files that are not YAML.
	ErrUnsupportedFormat = errors.New("unsupported config format")
	// ErrTrailingContent is returned when a file holds more than one document.
	ErrTrailingContent = errors.New("config file contains multiple documents")
)
