package config

import "errors"

var (
	ErrConfigNotFound    = errors.New("config: file not found")
	ErrInvalidFormat     = errors.New("config: cannot decode file")
	ErrUnsupportedFormat = errors.New("config: unsupported file extension")
	ErrValidationFailed  = errors.New("config: validation failed")
	// ErrMissingEnvVar is returned for ${VAR} references with no value and
	// no default under strict expansion.
	ErrMissingEnvVar = errors.New("config: environment variable not set")
	ErrWatcherClosed = errors.New("config: watcher closed")
)
