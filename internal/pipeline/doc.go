// Package pipeline runs a checker invocation as an ordered list of steps.
//
// A run moves through discovery, per-file decoding and extraction,
// duplicate detection, the repository merge, report writing, the audit log
// and the run history. Each stage is a Step that receives the shared
// model.Run and records its results on it.
//
// Decoding and extraction are the only stages that run in parallel. The
// BatchProcessor bounds them with errgroup and stores every result at its
// discovery index, so the aggregated output does not depend on scheduling.
package pipeline
