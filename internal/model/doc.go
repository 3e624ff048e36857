// Package model defines the data structures shared by every stage of a
// checker run.
//
// This package contains the following main types:
//   - Token and Value: a recognized field name and the scalar found for it
//   - Extraction and FileExtraction: values pulled out of rule files
//   - Occurrences: the run-wide, ordered token to extraction mapping
//   - Finding and RepositoryDuplicate: in-run and cross-run duplicates
//   - Run: the state threaded through the pipeline for one invocation
//
// The types live in their own package so that rulefile, dedup, repository,
// report and pipeline can share them without import cycles.
package model
