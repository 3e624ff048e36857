package rulefile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Extension is the file extension of rule files.
const Extension = ".rule"

// ruleJSON parses rule content. Numbers are kept as json.Number so values
// keep their literal text.
var ruleJSON = jsoniter.Config{
	EscapeHTML:             false,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// Section is one top-level member of a rule document.
type Section struct {
	Name string
	Body any
}

// Document is a parsed rule file.
type Document struct {
	// Path is the file the document was read from.
	Path string

	// Charset is the detected source encoding.
	Charset string

	// Sections are the top-level members in file order. A document whose
	// top-level value is not an object has no sections.
	Sections []Section
}

// Decoder reads rule files. The zero value is not usable; call NewDecoder.
type Decoder struct {
	extension string
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithExtension overrides the accepted file extension.
func WithExtension(ext string) DecoderOption {
	return func(d *Decoder) {
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		d.extension = ext
	}
}

// NewDecoder creates a Decoder for files with the rule extension.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{extension: Extension}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Extension returns the accepted file extension.
func (d *Decoder) Extension() string {
	return d.extension
}

// Accepts reports whether path has the accepted extension.
// The comparison ignores case.
func (d *Decoder) Accepts(path string) bool {
	return strings.EqualFold(filepath.Ext(path), d.extension)
}

// Decode reads and parses the rule file at path.
func (d *Decoder) Decode(path string) (*Document, error) {
	if !d.Accepts(path) {
		return nil, &FileError{Kind: ErrUnsupportedFileType, Path: path}
	}

	raw, err := os.ReadFile(path) //nolint:gosec // Scanning user-selected rule files is the purpose
	if err != nil {
		return nil, &FileError{Kind: ErrParseFailure, Path: path, Err: err}
	}

	return d.DecodeBytes(path, raw)
}

// DecodeBytes parses raw content as if it were read from path.
func (d *Decoder) DecodeBytes(path string, raw []byte) (*Document, error) {
	if !d.Accepts(path) {
		return nil, &FileError{Kind: ErrUnsupportedFileType, Path: path}
	}

	enc, charsetName := detectEncoding(raw)
	text, err := transcode(raw, enc)
	if err != nil {
		return nil, &FileError{Kind: ErrParseFailure, Path: path, Charset: charsetName, Err: err}
	}

	sections, err := parseSections(text)
	if err != nil {
		return nil, &FileError{Kind: ErrParseFailure, Path: path, Charset: charsetName, Err: err}
	}

	return &Document{
		Path:     path,
		Charset:  charsetName,
		Sections: sections,
	}, nil
}

// parseSections validates text as a single JSON value and returns the
// members of a top-level object in file order.
func parseSections(text []byte) ([]Section, error) {
	if !ruleJSON.Valid(text) {
		return nil, errors.New("invalid JSON")
	}

	iter := jsoniter.ParseBytes(ruleJSON, text)
	sections := make([]Section, 0)

	if iter.WhatIsNext() != jsoniter.ObjectValue {
		iter.Skip()
	} else {
		complete := iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
			sections = append(sections, Section{Name: field, Body: it.Read()})
			return it.Error == nil
		})
		if !complete {
			return nil, errors.New("malformed top-level object")
		}
	}

	if iter.WhatIsNext() != jsoniter.InvalidValue {
		return nil, errors.New("trailing data after JSON document")
	}

	return sections, nil
}
