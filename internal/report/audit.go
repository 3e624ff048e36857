package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

const (
	auditHeader    = "Audit Log\n==========================================\n"
	auditSeparator = "------------------------------------------\n"
)

// AuditEntry is one record of the audit log.
type AuditEntry struct {
	ExecutedAt     time.Time
	NewValues      int
	RepositorySize int
	ResultFiles    []string
	RepositoryPath string
	ExecutedBy     string
	Hostname       string
}

// AuditLog appends entries to a text file. The header is written once, when
// the file is created; existing content is never rewritten.
type AuditLog struct {
	path string
}

// NewAuditLog returns an AuditLog writing to path.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Path returns the log file location.
func (a *AuditLog) Path() string {
	return a.path
}

// Append adds an entry, creating the file with its header if needed.
func (a *AuditLog) Append(entry AuditEntry) error {
	if err := a.ensureHeader(); err != nil {
		return err
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path is built from the configured output directory
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	if _, err := f.WriteString(formatAuditEntry(entry)); err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("failed to append to audit log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}

// ensureHeader creates the log with its header when it does not exist yet.
func (a *AuditLog) ensureHeader() error {
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) //nolint:gosec // path is built from the configured output directory
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	if _, err := f.WriteString(auditHeader); err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("failed to write audit log header: %w", err)
	}
	return f.Close()
}

func formatAuditEntry(e AuditEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Date and Time of Execution: %s\n", e.ExecutedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Number of new IOCs added to the repository: %d\n", e.NewValues)
	fmt.Fprintf(&sb, "Total number of IOCs in the repository: %d\n", e.RepositorySize)
	fmt.Fprintf(&sb, "Results written to: %s\n", strings.Join(e.ResultFiles, ", "))
	fmt.Fprintf(&sb, "Repository file updated: %s\n", e.RepositoryPath)
	fmt.Fprintf(&sb, "Executed by: %s\n", e.ExecutedBy)
	fmt.Fprintf(&sb, "Hostname: %s\n", e.Hostname)
	sb.WriteString(auditSeparator)
	return sb.String()
}
