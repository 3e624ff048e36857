// Package config provides configuration structures and utilities for
// iocchecker. It defines the scan inputs, output locations, repository and
// history settings, and the token allow-list adjustments.
//
// Values are resolved in increasing order of precedence: built-in defaults,
// the .iocchecker YAML file, IOCCHECKER_* environment variables (optionally
// loaded from a .env file), and finally command line flags.
package config
