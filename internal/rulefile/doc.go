// Package rulefile reads detection-rule files and pulls token values out of
// them.
//
// The package has three parts:
//   - Discover expands scan directories into an ordered list of rule files
//   - Decoder detects the text encoding of a file, transcodes it to UTF-8 and
//     parses it as JSON while keeping the order of top-level sections
//   - Extractor walks sections, execution steps and conditions and emits one
//     model.Extraction per allowed token value
//
// Decoding failures are reported as *FileError values that match
// ErrUnsupportedFileType or ErrParseFailure with errors.Is. Callers skip the
// file and continue; a single broken rule never stops a scan.
package rulefile
