// Package dedup folds per-file extraction results into the run-wide
// occurrence set and finds the values that repeat within a run.
//
// Aggregation is order sensitive: results are folded by their discovery
// index, so the occurrence set, and everything derived from it, is the same
// whether files were extracted one by one or in parallel.
package dedup
