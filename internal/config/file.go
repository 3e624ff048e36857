package config

// TokenSettings adjusts the token allow-list.
type TokenSettings struct {
	// Extra are additional tokens or glob patterns to extract.
	Extra []string `yaml:"extra,omitempty"`

	// Disabled are built-in tokens to ignore.
	Disabled []string `yaml:"disabled,omitempty"`
}

// File represents the structure of the .iocchecker configuration file.
// Pointer fields distinguish "not set" from the zero value.
type File struct {
	// Directories are the default scan roots, used when none are given on
	// the command line.
	Directories []string `yaml:"directories,omitempty"`

	// Output is the output directory.
	Output string `yaml:"output,omitempty"`

	// Repository overrides the repository file location.
	Repository string `yaml:"repository,omitempty"`

	// Workers is the number of concurrent decoders.
	Workers *int `yaml:"workers,omitempty"`

	// Extension is the rule file extension.
	Extension string `yaml:"extension,omitempty"`

	// Markdown enables the Markdown duplicates report.
	Markdown *bool `yaml:"markdown,omitempty"`

	// History enables the run history database.
	History *bool `yaml:"history,omitempty"`

	// DBDir is the history database directory.
	DBDir string `yaml:"dbDir,omitempty"`

	// LogFormat is text or json.
	LogFormat string `yaml:"logFormat,omitempty"`

	// Tokens adjusts the allow-list.
	Tokens TokenSettings `yaml:"tokens,omitempty"`
}

// ApplyFile copies every value set in f onto c.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}

	if len(f.Directories) > 0 {
		c.Directories = nonBlank(f.Directories)
	}
	if f.Output != "" {
		c.OutputDir = f.Output
	}
	if f.Repository != "" {
		c.RepositoryPath = f.Repository
	}
	if f.Workers != nil {
		c.Workers = *f.Workers
	}
	if f.Extension != "" {
		c.Extension = normalizeExtension(f.Extension)
	}
	if f.Markdown != nil {
		c.Markdown = *f.Markdown
	}
	if f.History != nil {
		c.SaveHistory = *f.History
	}
	if f.DBDir != "" {
		c.DBDir = f.DBDir
	}
	if f.LogFormat != "" {
		c.LogFormat = f.LogFormat
	}
	c.ExtraTokens = append(c.ExtraTokens, f.Tokens.Extra...)
	c.DisabledTokens = append(c.DisabledTokens, f.Tokens.Disabled...)
}

// normalizeExtension adds the leading dot if it is missing.
func normalizeExtension(ext string) string {
	if ext == "" || ext[0] == '.' {
		return ext
	}
	return "." + ext
}
