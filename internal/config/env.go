package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvDirectories = "IOCCHECKER_DIRECTORIES"
	EnvOutput      = "IOCCHECKER_OUTPUT"
	EnvRepository  = "IOCCHECKER_REPOSITORY"
	EnvWorkers     = "IOCCHECKER_WORKERS"
	EnvMarkdown    = "IOCCHECKER_MARKDOWN"
	EnvNoHistory   = "IOCCHECKER_NO_HISTORY"
	EnvDBDir       = "IOCCHECKER_DB_DIR"
	EnvVerbose     = "IOCCHECKER_VERBOSE"
	EnvLogFormat   = "IOCCHECKER_LOG_FORMAT"
)

// LoadDotEnv loads variables from the given .env files (".env" in the
// current directory when none are given) into the process environment.
// Variables already set are not overridden. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides c with IOCCHECKER_* variables found by lookup.
// Pass os.LookupEnv to read the process environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvDirectories); ok {
		c.Directories = nonBlank(strings.Split(v, ","))
	}
	if v, ok := get(EnvOutput); ok {
		c.OutputDir = v
	}
	if v, ok := get(EnvRepository); ok {
		c.RepositoryPath = v
	}
	if v, ok := get(EnvDBDir); ok {
		c.DBDir = v
	}
	if v, ok := get(EnvLogFormat); ok {
		c.LogFormat = strings.ToLower(v)
	}

	if v, ok := get(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, EnvWorkers, v)
		}
		c.Workers = n
	}

	bools := []struct {
		key    string
		target *bool
		negate bool
	}{
		{key: EnvMarkdown, target: &c.Markdown},
		{key: EnvNoHistory, target: &c.SaveHistory, negate: true},
		{key: EnvVerbose, target: &c.Verbose},
	}
	for _, b := range bools {
		v, ok := get(b.key)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, b.key, v)
		}
		*b.target = parsed != b.negate
	}

	return nil
}
