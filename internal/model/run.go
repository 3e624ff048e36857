package model

import (
	"fmt"
	"time"
)

// bytesPerMiB converts byte counts to the size unit used in reports.
const bytesPerMiB = 1024 * 1024

// DirectoryInfo describes the rule files found under one scan directory.
type DirectoryInfo struct {
	// NumberOfFiles is the number of rule files discovered.
	NumberOfFiles int `json:"number_of_files"`

	// TotalSize is the combined size in MiB.
	TotalSize float64 `json:"total_size"`

	// Bytes is the combined size in bytes.
	Bytes int64 `json:"-"`
}

// AddFile accounts for one rule file of the given size.
func (d *DirectoryInfo) AddFile(size int64) {
	d.NumberOfFiles++
	d.Bytes += size
	d.TotalSize = float64(d.Bytes) / bytesPerMiB
}

// Stats holds the counters of a run. Every recovered failure shows up here.
type Stats struct {
	FilesDiscovered int `json:"files_discovered"`
	FilesExtracted  int `json:"files_extracted"`
	FilesSkipped    int `json:"files_skipped"`
	FilesRejected   int `json:"files_rejected"`
	ValuesExtracted int `json:"values_extracted"`
	ValuesDropped   int `json:"values_dropped"`
}

// MergeSummary is what the repository merge reports back to the run.
type MergeSummary struct {
	// NewValues is the number of values appended to the repository.
	NewValues int `json:"new_values"`

	// RepositorySize is the number of tokens in the repository.
	RepositorySize int `json:"repository_size"`

	// StoredValues is the total number of values in the repository.
	StoredValues int `json:"stored_values"`

	// Duplicates are extractions whose value the repository already held.
	Duplicates []RepositoryDuplicate `json:"duplicates,omitempty"`

	// LoadFailed is set when a corrupt repository was replaced by an empty one.
	LoadFailed bool `json:"load_failed,omitempty"`

	// WriteFailed is set when the updated repository could not be persisted.
	WriteFailed bool `json:"write_failed,omitempty"`
}

// Run carries all state of one checker invocation through the pipeline.
type Run struct {
	// ID identifies the run in the history database.
	ID string

	// StartedAt is the execution time recorded in reports and the audit log.
	StartedAt time.Time

	// Directories are the scan roots as given by the user.
	Directories []string

	// Files are the rule files to scan, in discovery order.
	Files []string

	// DirectoryInfo maps each scan root to its file metadata.
	DirectoryInfo map[string]DirectoryInfo

	// Results holds one entry per file, indexed like Files.
	Results []FileExtraction

	// Occurrences is the aggregated extraction set.
	Occurrences *Occurrences

	// Findings are the in-run duplicates.
	Findings Findings

	// Merge is the outcome of the repository merge.
	Merge MergeSummary

	// Stats are the run counters.
	Stats Stats

	// OutputDir is where reports are written.
	OutputDir string

	// RepositoryPath is the repository store location.
	RepositoryPath string

	// Outputs lists the report file names written in this run.
	Outputs []string

	// ExecutedBy and Hostname identify who ran the checker.
	ExecutedBy string
	Hostname   string

	// Warnings collects recovered failures in the order they happened.
	Warnings []string

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string
}

// NewRun creates a Run for the given scan roots.
func NewRun(id string, directories []string, startedAt time.Time) *Run {
	return &Run{
		ID:            id,
		StartedAt:     startedAt,
		Directories:   directories,
		DirectoryInfo: make(map[string]DirectoryInfo),
		Occurrences:   NewOccurrences(),
	}
}

// Warnf records a recovered failure.
func (r *Run) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// RepositoryFindings returns the repository duplicates grouped by token and
// value.
func (r *Run) RepositoryFindings() Findings {
	return GroupRepositoryDuplicates(r.Merge.Duplicates)
}
