package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotScalar is returned when a value is a JSON object or array.
// Only scalars (string, number, boolean, null) are tracked.
var ErrNotScalar = errors.New("value is not a JSON scalar")

// Token is a recognized rule field name such as "processEvent/process".
type Token string

// Category returns the event category of the token, the part before the
// first slash. Tokens without a slash are their own category.
func (t Token) Category() string {
	name := string(t)
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return name
}

// Field returns the part of the token after the category.
func (t Token) Field() string {
	name := string(t)
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// Value is an opaque scalar extracted from a rule condition.
//
// A Value holds the compact JSON text of the scalar. Two values are equal
// when their JSON text is equal, so the string "445" and the number 445 are
// different values and numbers keep their literal form through a
// repository round trip. The zero Value is invalid.
type Value struct {
	raw string
}

// NewValue converts a decoded JSON scalar into a Value.
// Accepted inputs are string, json.Number, bool, nil and the Go numeric
// kinds. Maps and slices return ErrNotScalar.
func NewValue(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{raw: "null"}, nil
	case string:
		return StringValue(x), nil
	case json.Number:
		return ParseValue([]byte(x.String()))
	case bool:
		return Value{raw: strconv.FormatBool(x)}, nil
	case float64:
		return Value{raw: strconv.FormatFloat(x, 'g', -1, 64)}, nil
	case float32:
		return Value{raw: strconv.FormatFloat(float64(x), 'g', -1, 32)}, nil
	case int:
		return Value{raw: strconv.Itoa(x)}, nil
	case int64:
		return Value{raw: strconv.FormatInt(x, 10)}, nil
	case map[string]any, []any:
		return Value{}, ErrNotScalar
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// StringValue returns the Value for a JSON string.
func StringValue(s string) Value {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) //nolint:errcheck // encoding a string cannot fail
	return Value{raw: strings.TrimSuffix(buf.String(), "\n")}
}

// ParseValue parses the JSON text of a scalar into its canonical Value.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return Value{}, fmt.Errorf("invalid value %q: %w", data, err)
	}
	if dec.More() {
		return Value{}, fmt.Errorf("invalid value %q: trailing data", data)
	}

	if n, ok := decoded.(json.Number); ok {
		return Value{raw: n.String()}, nil
	}
	return NewValue(decoded)
}

// Raw returns the JSON text of the value.
func (v Value) Raw() string {
	return v.raw
}

// IsZero reports whether v is the zero Value.
func (v Value) IsZero() bool {
	return v.raw == ""
}

// IsString reports whether v holds a JSON string.
func (v Value) IsString() bool {
	return strings.HasPrefix(v.raw, `"`)
}

// String renders strings without quotes and every other scalar as its JSON
// literal.
func (v Value) String() string {
	if v.IsString() {
		var s string
		if err := json.Unmarshal([]byte(v.raw), &s); err == nil {
			return s
		}
	}
	return v.raw
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsZero() {
		return []byte("null"), nil
	}
	return []byte(v.raw), nil
}

// UnmarshalJSON implements json.Unmarshaler. The input is canonicalized so
// that hand-edited repository files compare equal to freshly extracted
// values.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
