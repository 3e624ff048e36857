package dedup

import (
	"github.com/nao1215/iocchecker/internal/model"
)

// Detect returns, for each token in first-seen order, the values that occur
// at least twice. Values are listed in first-seen order and each finding
// keeps every contributing file, repeats included.
func Detect(occ *model.Occurrences) model.Findings {
	findings := make(model.Findings, 0)

	for _, t := range occ.Tokens() {
		order := make([]string, 0)
		byValue := make(map[string]*model.Finding)

		for _, e := range occ.Extractions(t) {
			key := e.Value.Raw()
			f, ok := byValue[key]
			if !ok {
				f = &model.Finding{Value: e.Value}
				byValue[key] = f
				order = append(order, key)
			}
			f.Count++
			f.Files = append(f.Files, e.File)
		}

		var dups []model.Finding
		for _, key := range order {
			if f := byValue[key]; f.Count > 1 {
				dups = append(dups, *f)
			}
		}
		if len(dups) > 0 {
			findings = append(findings, model.TokenFindings{Token: t, Findings: dups})
		}
	}

	return findings
}
