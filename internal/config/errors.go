package config

import "errors"

// Sentinel error kinds for this package, usable with errors.Is.
var (
	// ErrInvalidConfig marks configuration that fails validation.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a failure to read or parse a config layer.
	ErrLoadConfig = errors.New("load config failed")
)
