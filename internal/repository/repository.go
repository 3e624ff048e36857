package repository

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/nao1215/iocchecker/internal/model"
)

// FileName is the default repository file name inside the output directory.
const FileName = "repository.json"

// storeJSON reads and writes the repository file. Output uses four-space
// indentation.
var storeJSON = jsoniter.Config{
	EscapeHTML:    false,
	UseNumber:     true,
	IndentionStep: 4,
}.Froze()

// Repository is the in-memory form of the value store.
// It is not safe for concurrent use.
type Repository struct {
	tokens []model.Token
	values map[model.Token][]model.Value
	index  map[model.Token]map[string]struct{}
}

// MergeResult is the outcome of merging one run into the repository.
type MergeResult struct {
	// NewValues is the number of values appended.
	NewValues int

	// Duplicates holds one entry per extraction whose value was already
	// present, in merge order.
	Duplicates []model.RepositoryDuplicate
}

// New returns an empty repository.
func New() *Repository {
	return &Repository{
		tokens: make([]model.Token, 0),
		values: make(map[model.Token][]model.Value),
		index:  make(map[model.Token]map[string]struct{}),
	}
}

// Load reads the repository at path. A missing or blank file yields an
// empty repository. If the file exists but cannot be read or parsed, Load
// returns an empty repository together with an error wrapping ErrLoad.
func Load(path string) (*Repository, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return New(), fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return New(), nil
	}

	r, err := parse(raw)
	if err != nil {
		return New(), fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	return r, nil
}

// parse decodes the token to value-list object, keeping token order.
func parse(raw []byte) (*Repository, error) {
	if !storeJSON.Valid(raw) {
		return nil, errors.New("invalid JSON")
	}

	iter := jsoniter.ParseBytes(storeJSON, raw)
	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return nil, errors.New("top-level value is not an object")
	}

	r := New()
	var parseErr error
	complete := iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		tok := model.Token(field)
		if it.WhatIsNext() != jsoniter.ArrayValue {
			parseErr = fmt.Errorf("token %s: values are not a list", field)
			return false
		}

		r.ensureToken(tok)
		ok := it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			v, err := model.NewValue(it.Read())
			if err != nil {
				parseErr = fmt.Errorf("token %s: %w", field, err)
				return false
			}
			r.add(tok, v)
			return it.Error == nil
		})
		return ok && it.Error == nil
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if !complete {
		return nil, errors.New("malformed repository object")
	}
	if iter.WhatIsNext() != jsoniter.InvalidValue {
		return nil, errors.New("trailing data after repository object")
	}

	return r, nil
}

// Contains reports whether the value is stored for the token.
func (r *Repository) Contains(t model.Token, v model.Value) bool {
	_, ok := r.index[t][v.Raw()]
	return ok
}

// Values returns the values stored for a token in insertion order.
func (r *Repository) Values(t model.Token) []model.Value {
	out := make([]model.Value, len(r.values[t]))
	copy(out, r.values[t])
	return out
}

// Tokens returns the stored tokens in insertion order.
func (r *Repository) Tokens() []model.Token {
	out := make([]model.Token, len(r.tokens))
	copy(out, r.tokens)
	return out
}

// Size returns the number of tokens in the repository.
func (r *Repository) Size() int {
	return len(r.tokens)
}

// ValueCount returns the total number of stored values.
func (r *Repository) ValueCount() int {
	n := 0
	for _, vs := range r.values {
		n += len(vs)
	}
	return n
}

// Merge adds the occurrences of a run. Tokens are walked in first-seen order
// and their extractions in aggregation order. A value already stored for its
// token, including one added earlier in the same merge, yields a
// RepositoryDuplicate; any other value is appended.
func (r *Repository) Merge(occ *model.Occurrences) MergeResult {
	result := MergeResult{Duplicates: make([]model.RepositoryDuplicate, 0)}

	for _, t := range occ.Tokens() {
		for _, e := range occ.Extractions(t) {
			if r.Contains(t, e.Value) {
				result.Duplicates = append(result.Duplicates, model.RepositoryDuplicate{
					Token: t,
					Value: e.Value,
					File:  e.File,
				})
				continue
			}
			r.ensureToken(t)
			r.add(t, e.Value)
			result.NewValues++
		}
	}

	return result
}

// Save writes the repository to path. The content goes to a temporary file
// in the same directory which is synced and then renamed over path, so a
// failure at any point leaves the previous file as it was.
func (r *Repository) Save(path string) (err error) {
	data, err := r.encode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()        //nolint:errcheck // already failing
			_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err = os.Chmod(tmpName, fileMode(path)); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	return nil
}

// fileMode returns the permissions of the file at path, or 0600 when it
// does not exist yet.
func fileMode(path string) os.FileMode {
	st, err := os.Stat(path)
	if err != nil {
		return 0o600
	}
	return st.Mode().Perm()
}

// encode renders the repository as indented JSON in token insertion order.
func (r *Repository) encode() ([]byte, error) {
	stream := storeJSON.BorrowStream(nil)
	defer storeJSON.ReturnStream(stream)

	if len(r.tokens) == 0 {
		stream.WriteEmptyObject()
	} else {
		stream.WriteObjectStart()
		for i, t := range r.tokens {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(string(t))

			values := r.values[t]
			if len(values) == 0 {
				stream.WriteEmptyArray()
				continue
			}
			stream.WriteArrayStart()
			for j, v := range values {
				if j > 0 {
					stream.WriteMore()
				}
				stream.WriteRaw(v.Raw())
			}
			stream.WriteArrayEnd()
		}
		stream.WriteObjectEnd()
	}
	stream.WriteRaw("\n")

	if stream.Error != nil {
		return nil, stream.Error
	}

	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}

func (r *Repository) ensureToken(t model.Token) {
	if _, ok := r.index[t]; ok {
		return
	}
	r.tokens = append(r.tokens, t)
	r.index[t] = make(map[string]struct{})
	if r.values[t] == nil {
		r.values[t] = make([]model.Value, 0)
	}
}

// add appends v even when it is already stored, so that a loaded file keeps
// every entry it had.
func (r *Repository) add(t model.Token, v model.Value) {
	r.values[t] = append(r.values[t], v)
	r.index[t][v.Raw()] = struct{}{}
}
