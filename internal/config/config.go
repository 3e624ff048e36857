package config

import (
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/nao1215/iocchecker/internal/token"
)

// Default configuration values.
const (
	// DefaultOutputDir is where reports and the repository are written when
	// no output directory is configured.
	DefaultOutputDir = "."

	// DefaultWorkers is the number of rule files decoded concurrently.
	DefaultWorkers = 4

	// DefaultExtension is the rule file extension.
	DefaultExtension = ".rule"

	// AppName is the application name used for XDG directory paths.
	AppName = "iocchecker"

	// LogFormatText and LogFormatJSON are the accepted log formats.
	LogFormatText = "text"
	LogFormatJSON = "json"

	// repositoryFileName is the repository file inside the output directory.
	repositoryFileName = "repository.json"
)

// Config holds all configuration options for iocchecker.
// This struct is populated from defaults, the configuration file, the
// environment and CLI flags, and passed through the application rather than
// kept in global state.
type Config struct {
	// Directories are the scan roots. Entries may contain glob wildcards.
	Directories []string

	// OutputDir receives extracted_values.json, the duplicates reports,
	// the audit log and, unless RepositoryPath is set, the repository.
	OutputDir string

	// RepositoryPath overrides the repository location.
	RepositoryPath string

	// Workers is the number of rule files decoded concurrently.
	Workers int

	// Extension is the rule file extension, including the leading dot.
	Extension string

	// Markdown enables the Markdown duplicates report.
	Markdown bool

	// SaveHistory records the run in the history database.
	SaveHistory bool

	// DBDir is the directory of the history database.
	// Defaults to the XDG data directory (~/.local/share/iocchecker on Linux).
	DBDir string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .iocchecker in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// LogFormat selects text or JSON log output.
	LogFormat string

	// ExtraTokens are additional tokens to extract. An entry containing "*"
	// is a glob pattern.
	ExtraTokens []string

	// DisabledTokens are built-in tokens that are not extracted.
	DisabledTokens []string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputDir:   DefaultOutputDir,
		Workers:     DefaultWorkers,
		Extension:   DefaultExtension,
		SaveHistory: true,
		DBDir:       XDGDataDir(),
		LogFormat:   LogFormatText,
	}
}

// XDGDataDir returns the XDG data directory for iocchecker.
// On Linux: ~/.local/share/iocchecker
// On macOS: ~/Library/Application Support/iocchecker
// On Windows: %LOCALAPPDATA%\iocchecker
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for iocchecker.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// RepositoryFile returns the effective repository location.
func (c *Config) RepositoryFile() string {
	if c.RepositoryPath != "" {
		return c.RepositoryPath
	}
	return filepath.Join(c.OutputDir, repositoryFileName)
}

// AllowList builds the token allow-list from the built-in tokens and the
// configured adjustments.
func (c *Config) AllowList() *token.AllowList {
	return token.NewAllowList(
		token.WithPatterns(c.ExtraTokens...),
		token.WithDisabled(c.DisabledTokens...),
	)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
// This is called once after all sources are merged, before scanning begins.
func (c *Config) Validate() error {
	if len(nonBlank(c.Directories)) == 0 {
		return ErrNoDirectory
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrNoOutputDir
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return ErrInvalidLogFormat
	}

	ext := strings.TrimPrefix(c.Extension, ".")
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		return ErrInvalidExtension
	}

	return nil
}

// nonBlank returns the entries that are not empty after trimming.
func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
