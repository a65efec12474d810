package config

import "errors"

var (
	// ErrParsingConfig is returned when environment variables cannot be
	// parsed into the config struct.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrConfigNotLoaded is returned when a config type could not be
	// read back from the cache.
	ErrConfigNotLoaded = errors.New("configuration has not been loaded")

	// ErrNilPointer is returned when a nil pointer is provided to Load.
	ErrNilPointer = errors.New("nil pointer provided to config loader")

	// ErrInvalidLogLevel is returned by NewLogger for an unknown level.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidLogFormat is returned by NewLogger for a format other than
	// json or console.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
