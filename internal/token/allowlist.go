package token

import (
	"sort"
	"strings"

	"github.com/ryanuber/go-glob"

	"github.com/nao1215/iocchecker/internal/model"
)

// AllowList decides which condition tokens are extracted.
// It is safe for concurrent use once built.
type AllowList struct {
	// exact holds built-in tokens and configured names without wildcards.
	exact map[model.Token]struct{}

	// patterns are configured names containing '*'.
	patterns []string

	// disabled tokens are rejected even when a pattern matches them.
	disabled map[model.Token]struct{}
}

// Option configures an AllowList.
type Option func(*AllowList)

// WithPatterns adds extra tokens. Entries containing '*' are glob patterns
// (for example "processEvent/*"); others are exact token names. Blank
// entries are ignored.
func WithPatterns(patterns ...string) Option {
	return func(a *AllowList) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			switch {
			case p == "":
			case strings.Contains(p, "*"):
				a.patterns = append(a.patterns, p)
			default:
				a.exact[model.Token(p)] = struct{}{}
			}
		}
	}
}

// WithDisabled removes tokens from the list.
func WithDisabled(tokens ...string) Option {
	return func(a *AllowList) {
		for _, t := range tokens {
			t = strings.TrimSpace(t)
			if t != "" {
				a.disabled[model.Token(t)] = struct{}{}
			}
		}
	}
}

// NewAllowList returns the built-in allow-list modified by opts.
func NewAllowList(opts ...Option) *AllowList {
	a := &AllowList{
		exact:    make(map[model.Token]struct{}),
		disabled: make(map[model.Token]struct{}),
	}
	for _, t := range Builtin() {
		a.exact[t] = struct{}{}
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Allows reports whether values of the named token are extracted.
func (a *AllowList) Allows(name string) bool {
	t := model.Token(name)
	if _, off := a.disabled[t]; off {
		return false
	}
	if _, ok := a.exact[t]; ok {
		return true
	}
	for _, p := range a.patterns {
		if glob.Glob(p, name) {
			return true
		}
	}
	return false
}

// Tokens returns the exact tokens that are allowed, built-ins first in
// category order, then configured extras sorted by name.
func (a *AllowList) Tokens() []model.Token {
	var out []model.Token
	builtin := make(map[model.Token]struct{})
	for _, t := range Builtin() {
		builtin[t] = struct{}{}
		if a.Allows(string(t)) {
			out = append(out, t)
		}
	}

	var extras []model.Token
	for t := range a.exact {
		if _, ok := builtin[t]; ok {
			continue
		}
		if a.Allows(string(t)) {
			extras = append(extras, t)
		}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })

	return append(out, extras...)
}

// Patterns returns the configured glob patterns.
func (a *AllowList) Patterns() []string {
	out := make([]string, len(a.patterns))
	copy(out, a.patterns)
	return out
}

// Categories groups the allowed exact tokens by category, keeping the
// built-in category order and appending new categories alphabetically.
func (a *AllowList) Categories() []Category {
	var out []Category
	index := make(map[string]int)
	for _, t := range a.Tokens() {
		name := t.Category()
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, Category{Name: name})
		}
		out[i].Tokens = append(out[i].Tokens, t)
	}
	return out
}
