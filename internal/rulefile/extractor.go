package rulefile

import (
	"github.com/nao1215/iocchecker/internal/model"
)

// Condition field names inside an execution step.
const (
	executionKey = "execution"
	tokenKey     = "token"
	valueKey     = "value"
)

// TokenFilter decides which tokens are extracted.
// *token.AllowList implements it.
type TokenFilter interface {
	Allows(name string) bool
}

// Extractor pulls token values out of decoded rule documents.
type Extractor struct {
	filter TokenFilter
}

// NewExtractor creates an Extractor that keeps tokens accepted by filter.
func NewExtractor(filter TokenFilter) *Extractor {
	return &Extractor{filter: filter}
}

// Extract returns the extractions of doc in section, step, condition order,
// together with the number of conditions that carried a value but were
// dropped. Branches with an unexpected shape are skipped.
//
// The expected shape is:
//
//	{"<section>": {"execution": [[{"token": "...", "value": ...}, ...], ...]}}
func (x *Extractor) Extract(doc *Document) ([]model.Extraction, int) {
	if doc == nil {
		return nil, 0
	}

	out := make([]model.Extraction, 0)
	dropped := 0

	for _, section := range doc.Sections {
		body, ok := section.Body.(map[string]any)
		if !ok {
			continue
		}
		steps, ok := body[executionKey].([]any)
		if !ok {
			continue
		}

		for _, step := range steps {
			conditions, ok := step.([]any)
			if !ok {
				continue
			}

			for _, c := range conditions {
				e, found, kept := x.extractCondition(c, doc.Path)
				if !found {
					continue
				}
				if !kept {
					dropped++
					continue
				}
				out = append(out, e)
			}
		}
	}

	return out, dropped
}

// ExtractFile decodes the file at index/path with dec and extracts it.
// Decoding failures are returned in the result rather than as an error so
// that batch callers can keep going.
func (x *Extractor) ExtractFile(dec *Decoder, index int, path string) model.FileExtraction {
	result := model.FileExtraction{Index: index, File: path}

	doc, err := dec.Decode(path)
	if err != nil {
		result.Err = err
		if fe, ok := err.(*FileError); ok { //nolint:errorlint // Decode returns *FileError directly
			result.Charset = fe.Charset
		}
		return result
	}

	result.Charset = doc.Charset
	result.Extractions, result.Dropped = x.Extract(doc)
	return result
}

// extractCondition inspects a single condition. found reports whether the
// condition carries a value at all; kept reports whether it was extracted.
func (x *Extractor) extractCondition(c any, path string) (model.Extraction, bool, bool) {
	cond, ok := c.(map[string]any)
	if !ok {
		return model.Extraction{}, false, false
	}

	raw, ok := cond[valueKey]
	if !ok {
		return model.Extraction{}, false, false
	}

	name, ok := cond[tokenKey].(string)
	if !ok || !x.filter.Allows(name) {
		return model.Extraction{}, true, false
	}

	v, err := model.NewValue(raw)
	if err != nil {
		return model.Extraction{}, true, false
	}

	return model.Extraction{
		Token: model.Token(name),
		Value: v,
		File:  path,
	}, true, true
}
