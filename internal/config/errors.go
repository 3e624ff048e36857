package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
var (
	// ErrNoDirectory is returned when no scan directory is specified, neither
	// as an argument nor in the configuration file.
	ErrNoDirectory = errors.New("no directory specified: provide at least one directory to scan")

	// ErrNoOutputDir is returned when the output directory is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrInvalidExtension is returned when the rule file extension is empty
	// or contains a path separator.
	ErrInvalidExtension = errors.New("invalid rule file extension")

	// ErrInvalidEnv is returned when an IOCCHECKER_* variable cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")
)
