// Package repository maintains the persisted, append-only store of every
// token value seen in earlier runs.
//
// The store is a JSON object mapping each token to the list of values
// recorded for it, in the order they were first added. A run loads the
// store, merges its occurrences into it, and writes it back. Values already
// present produce repository duplicates; the others are appended.
//
// Failures are degraded, not fatal: a corrupt store is replaced by an empty
// one after a copy of it is kept aside, and a failed write leaves the prior
// file untouched.
package repository
