package model

// Extraction is one (token, value, source file) triple found in a rule file.
type Extraction struct {
	Token Token  `json:"token"`
	Value Value  `json:"value"`
	File  string `json:"file"`
}

// FileExtraction is the result of decoding and extracting a single file.
type FileExtraction struct {
	// Index is the position of the file in discovery order.
	Index int

	// File is the path of the rule file.
	File string

	// Charset is the encoding the decoder detected, if it got that far.
	Charset string

	// Extractions are in section, step, condition order.
	Extractions []Extraction

	// Dropped counts conditions that carried a value but were ignored,
	// either because the token is not allowed or the value is not a scalar.
	Dropped int

	// Err is non-nil when the file was rejected or could not be parsed.
	// Extractions is empty in that case.
	Err error
}

// Occurrences is the run-wide mapping from token to the ordered sequence of
// extractions carrying it. Tokens are remembered in the order they were
// first seen so every consumer iterates deterministically.
//
// An Occurrences value is built by the aggregator and treated as read-only
// afterwards.
type Occurrences struct {
	tokens  []Token
	byToken map[Token][]Extraction
	total   int
}

// NewOccurrences returns an empty set.
func NewOccurrences() *Occurrences {
	return &Occurrences{
		tokens:  make([]Token, 0),
		byToken: make(map[Token][]Extraction),
	}
}

// Append adds an extraction at the end of its token's sequence.
func (o *Occurrences) Append(e Extraction) {
	if _, ok := o.byToken[e.Token]; !ok {
		o.tokens = append(o.tokens, e.Token)
	}
	o.byToken[e.Token] = append(o.byToken[e.Token], e)
	o.total++
}

// Tokens returns the tokens in first-seen order.
func (o *Occurrences) Tokens() []Token {
	if o == nil {
		return nil
	}
	out := make([]Token, len(o.tokens))
	copy(out, o.tokens)
	return out
}

// Extractions returns the extractions recorded for a token.
func (o *Occurrences) Extractions(t Token) []Extraction {
	if o == nil {
		return nil
	}
	return o.byToken[t]
}

// Len returns the total number of extractions across all tokens.
func (o *Occurrences) Len() int {
	if o == nil {
		return 0
	}
	return o.total
}

// Each calls fn for every extraction, token by token in first-seen order
// and, within a token, in aggregation order.
func (o *Occurrences) Each(fn func(Extraction)) {
	if o == nil {
		return
	}
	for _, t := range o.tokens {
		for _, e := range o.byToken[t] {
			fn(e)
		}
	}
}

// ValueCounts returns, per token, how often each value was seen.
// Values are keyed by their String form.
func (o *Occurrences) ValueCounts() map[Token]map[string]int {
	counts := make(map[Token]map[string]int)
	o.Each(func(e Extraction) {
		perToken, ok := counts[e.Token]
		if !ok {
			perToken = make(map[string]int)
			counts[e.Token] = perToken
		}
		perToken[e.Value.String()]++
	})
	return counts
}
