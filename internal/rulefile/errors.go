package rulefile

import (
	"errors"
	"fmt"
)

// Error kinds reported by the decoder.
var (
	// ErrUnsupportedFileType is returned for files without the rule extension.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrParseFailure is returned when a file is missing, cannot be
	// transcoded, or does not contain valid JSON.
	ErrParseFailure = errors.New("parse failure")
)

// FileError describes why a single rule file was not extracted.
type FileError struct {
	// Kind is ErrUnsupportedFileType or ErrParseFailure.
	Kind error

	// Path is the offending file.
	Path string

	// Charset is the detected encoding, empty if detection did not run.
	Charset string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *FileError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Path)
	if e.Charset != "" {
		msg += " (" + e.Charset + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the error kind.
func (e *FileError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *FileError) Unwrap() error {
	return e.Err
}
