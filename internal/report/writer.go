package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/iocchecker/internal/model"
)

// Output file names.
const (
	// ExtractedValuesFileName is the extracted values report.
	ExtractedValuesFileName = "extracted_values.json"

	// AuditLogFileName is the audit log kept in the output directory.
	AuditLogFileName = "audit_log.txt"

	duplicatesPrefix = "duplicates_"
	dateLayout       = "2006-01-02"
)

// DuplicatesFileName returns the text duplicates report name for a run
// started at t.
func DuplicatesFileName(t time.Time) string {
	return duplicatesPrefix + t.Format(dateLayout) + ".txt"
}

// DuplicatesMarkdownFileName returns the Markdown duplicates report name for
// a run started at t.
func DuplicatesMarkdownFileName(t time.Time) string {
	return duplicatesPrefix + t.Format(dateLayout) + ".md"
}

// Writer defines the interface for report output.
// Implementations render a finished run in one format.
type Writer interface {
	// Write outputs the run to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.Run) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// WriteFile creates (or truncates) the file at path and writes run to it with
// the writer returned by newWriter.
func WriteFile(path string, newWriter func(io.Writer) Writer, run *model.Run) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path) //nolint:gosec // path is built from the configured output directory
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if _, err := newWriter(f).Write(run); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
