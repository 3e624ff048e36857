package rulefile

import (
	"bytes"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// minConfidence is the chardet confidence (0-100) below which the
// statistical guess is discarded in favour of the UTF-8/windows-1252 rule.
const minConfidence = 30

// byteOrderMarks maps BOM prefixes to the charset they announce.
// UTF-8 is checked last because its BOM is not a prefix of the others.
var byteOrderMarks = []struct {
	prefix []byte
	name   string
}{
	{prefix: []byte{0xFF, 0xFE}, name: "utf-16le"},
	{prefix: []byte{0xFE, 0xFF}, name: "utf-16be"},
	{prefix: []byte{0xEF, 0xBB, 0xBF}, name: "utf-8"},
}

// detectEncoding guesses the encoding of raw rule content.
// A byte-order mark is authoritative, then a NUL in the first code unit
// marks UTF-16 without one. Otherwise chardet's best guess is
// used when it is confident enough and maps to a known encoding, and
// charset.DetermineEncoding decides the rest.
func detectEncoding(raw []byte) (encoding.Encoding, string) {
	for _, bom := range byteOrderMarks {
		if bytes.HasPrefix(raw, bom.prefix) {
			if enc, name, ok := lookupEncoding(bom.name); ok {
				return enc, name
			}
		}
	}

	if order := utf16ByteOrder(raw); order != "" {
		if enc, name, ok := lookupEncoding(order); ok {
			return enc, name
		}
	}

	if result, err := chardet.NewTextDetector().DetectBest(raw); err == nil && result.Confidence >= minConfidence {
		if enc, name, ok := lookupEncoding(result.Charset); ok {
			return enc, name
		}
	}

	enc, name, _ := charset.DetermineEncoding(raw, "application/json")
	return enc, name
}

// utf16ByteOrder recognizes UTF-16 text without a byte-order mark. A JSON
// document starts with an ASCII character and never contains a raw NUL
// byte, so "{\x00" is little endian and "\x00{" is big endian.
func utf16ByteOrder(raw []byte) string {
	if len(raw) < 2 {
		return ""
	}
	switch {
	case raw[0] != 0 && raw[0] < 0x80 && raw[1] == 0:
		return "utf-16le"
	case raw[0] == 0 && raw[1] != 0 && raw[1] < 0x80:
		return "utf-16be"
	}
	return ""
}

// lookupEncoding resolves a charset label to an x/text encoding.
// chardet reports a few names with separators the WHATWG index does not
// know (for example "GB-18030"), so a second lookup drops them.
func lookupEncoding(label string) (encoding.Encoding, string, bool) {
	candidates := []string{label, strings.ReplaceAll(label, "-", "")}
	for _, c := range candidates {
		enc, err := htmlindex.Get(c)
		if err != nil {
			continue
		}
		name, err := htmlindex.Name(enc)
		if err != nil {
			name = strings.ToLower(c)
		}
		return enc, name, true
	}
	return nil, "", false
}

// transcode converts raw bytes in enc to UTF-8. A leading BOM overrides enc
// and is stripped.
func transcode(raw []byte, enc encoding.Encoding) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), raw)
	if err != nil {
		return nil, err
	}
	return out, nil
}
