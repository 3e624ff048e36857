package repository

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nao1215/iocchecker/internal/model"
)

// backupTimeLayout is the timestamp suffix of preserved corrupt files.
const backupTimeLayout = "20060102T150405"

// Result is the outcome of Merger.Run.
type Result struct {
	// NewCount is the number of values appended in this run.
	NewCount int

	// Size is the number of tokens in the repository after the merge.
	Size int

	// StoredValues is the number of values in the repository after the merge.
	StoredValues int

	// Duplicates are the extractions already present in the repository.
	Duplicates []model.RepositoryDuplicate

	// LoadErr is set when the existing repository could not be loaded.
	// The merge then started from an empty repository.
	LoadErr error

	// WriteErr is set when the updated repository could not be saved.
	WriteErr error

	// BackupPath is where a corrupt repository was preserved, if any.
	BackupPath string
}

// Merger runs the load, merge and save cycle.
type Merger struct {
	logger *slog.Logger
	now    func() time.Time
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithLogger sets the logger for recovered failures.
func WithLogger(logger *slog.Logger) MergerOption {
	return func(m *Merger) {
		m.logger = logger
	}
}

// WithClock overrides the time source used to name backups.
func WithClock(now func() time.Time) MergerOption {
	return func(m *Merger) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMerger creates a Merger.
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Run loads the repository at path, merges occ into it and saves it back.
// Load and write failures are reported in the Result and logged; they never
// stop the merge. When the existing file is corrupt it is copied aside
// before being replaced. If that copy fails, the repository is not saved so
// the corrupt file stays in place.
func (m *Merger) Run(path string, occ *model.Occurrences) Result {
	var result Result

	repo, err := Load(path)
	if err != nil {
		result.LoadErr = err
		m.logger.Warn("repository could not be loaded, starting empty",
			"path", path,
			"error", err,
		)
	}

	merged := repo.Merge(occ)
	result.NewCount = merged.NewValues
	result.Duplicates = merged.Duplicates
	result.Size = repo.Size()
	result.StoredValues = repo.ValueCount()

	for _, d := range merged.Duplicates {
		m.logger.Debug("value already in repository",
			"token", d.Token,
			"value", d.Value,
			"file", d.File,
		)
	}

	if result.LoadErr != nil {
		backup, err := m.preserve(path)
		if err != nil {
			result.WriteErr = fmt.Errorf("%w: corrupt repository could not be preserved: %w", ErrWrite, err)
			m.logger.Warn("repository not saved",
				"path", path,
				"error", result.WriteErr,
			)
			return result
		}
		result.BackupPath = backup
		m.logger.Info("corrupt repository preserved", "backup", backup)
	}

	if err := repo.Save(path); err != nil {
		result.WriteErr = err
		m.logger.Warn("repository could not be saved",
			"path", path,
			"error", err,
		)
		return result
	}

	m.logger.Debug("repository updated",
		"path", path,
		"new_values", result.NewCount,
		"tokens", result.Size,
		"values", result.StoredValues,
	)

	return result
}

// preserve copies the file at path to <path>.corrupt-<timestamp>.
func (m *Merger) preserve(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return "", err
	}

	backup := path + ".corrupt-" + m.now().Format(backupTimeLayout)
	if err := os.WriteFile(backup, data, 0o600); err != nil {
		return "", err
	}
	return backup, nil
}
