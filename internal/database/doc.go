// Package database provides SQLite-based run history for iocchecker.
//
// This package implements the HistoryDB, which stores:
//   - one record per run with its counters, repository figures and outputs
//   - the duplicate findings of every run, in-run and against the repository
//
// The history answers questions the flat repository file cannot: when a
// value was first flagged, and which runs flagged it again.
//
// SQLite (via modernc.org/sqlite) keeps the history in a single file and
// needs no CGO, so the binary cross-compiles like the rest of the tool.
package database
