package model

// RepositoryTag marks files whose value was already present in the
// persisted repository.
const RepositoryTag = "[REPO]"

// Finding is a value that occurred more than once.
type Finding struct {
	// Value is the duplicated value.
	Value Value `json:"value"`

	// Count is the number of extractions carrying the value.
	Count int `json:"count"`

	// Files lists the contributing files in first-seen order. A file that
	// yielded the value twice appears twice.
	Files []string `json:"files"`
}

// TokenFindings groups the findings of one token.
type TokenFindings struct {
	Token    Token     `json:"token"`
	Findings []Finding `json:"findings"`
}

// Findings is an ordered list of per-token findings. Tokens without
// duplicates are absent.
type Findings []TokenFindings

// Lookup returns the findings recorded for a token, or nil.
func (f Findings) Lookup(t Token) []Finding {
	for _, tf := range f {
		if tf.Token == t {
			return tf.Findings
		}
	}
	return nil
}

// Len returns the total number of findings across tokens.
func (f Findings) Len() int {
	n := 0
	for _, tf := range f {
		n += len(tf.Findings)
	}
	return n
}

// RepositoryDuplicate is a value extracted in this run that the repository
// already held for the same token. One is recorded per extraction.
type RepositoryDuplicate struct {
	Token Token  `json:"token"`
	Value Value  `json:"value"`
	File  string `json:"file"`
}

// GroupRepositoryDuplicates folds repository duplicates into Findings so
// they can be rendered like in-run findings. Count is the number of
// occurrences; a single occurrence still produces a Finding because its
// duplicate lives in history.
func GroupRepositoryDuplicates(dups []RepositoryDuplicate) Findings {
	var out Findings
	tokenIndex := make(map[Token]int)
	valueIndex := make(map[Token]map[string]int)

	for _, d := range dups {
		ti, ok := tokenIndex[d.Token]
		if !ok {
			ti = len(out)
			tokenIndex[d.Token] = ti
			valueIndex[d.Token] = make(map[string]int)
			out = append(out, TokenFindings{Token: d.Token})
		}

		vi, ok := valueIndex[d.Token][d.Value.Raw()]
		if !ok {
			vi = len(out[ti].Findings)
			valueIndex[d.Token][d.Value.Raw()] = vi
			out[ti].Findings = append(out[ti].Findings, Finding{Value: d.Value})
		}

		f := &out[ti].Findings[vi]
		f.Count++
		f.Files = append(f.Files, d.File)
	}

	return out
}
