// Package report writes the files produced by a checker run.
//
// This package contains writers for the following outputs:
//   - ExtractedValuesWriter: extracted_values.json with per-directory
//     metadata and per-token value counts
//   - DuplicatesWriter: the dated plain-text duplicates report
//   - MarkdownWriter: the same duplicates as a Markdown document
//   - AuditLog: the append-only audit trail of every run
//
// Writers take the finished model.Run, so adding a format never touches
// the pipeline. Output is deterministic: tokens and values appear in the
// order they were first extracted.
package report
