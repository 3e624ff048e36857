// Package main provides the entry point for the iocchecker CLI.
//
// iocchecker scans detection-rule files, extracts indicator values from a
// fixed set of fields, reports values that repeat across the scanned rules
// and keeps a repository of every value seen in earlier runs.
//
// Usage:
//
//	iocchecker scan <directory>...
//	iocchecker history [run-id]
//
// See --help for all available options.
package main

// main is the entry point for iocchecker.
func main() {
	Execute()
}
