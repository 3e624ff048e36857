package dedup

import (
	"errors"
	"testing"

	"github.com/nao1215/iocchecker/internal/model"
)

func extraction(t *testing.T, tok, file string, v any) model.Extraction {
	t.Helper()

	value, err := model.NewValue(v)
	if err != nil {
		t.Fatalf("NewValue(%v): %v", v, err)
	}
	return model.Extraction{Token: model.Token(tok), Value: value, File: file}
}

// TestAggregateOrdersByIndex tests that arrival order does not matter.
func TestAggregateOrdersByIndex(t *testing.T) {
	t.Parallel()

	first := model.FileExtraction{Index: 0, File: "a.rule", Extractions: []model.Extraction{
		extraction(t, "processEvent/process", "a.rule", "svchost.exe"),
	}}
	second := model.FileExtraction{Index: 1, File: "b.rule", Extractions: []model.Extraction{
		extraction(t, "dnsLookupEvent/hostname", "b.rule", "evil.example"),
		extraction(t, "processEvent/process", "b.rule", "cmd.exe"),
	}}
	broken := model.FileExtraction{Index: 2, File: "c.rule", Err: errors.New("broken")}

	sequential := Aggregate([]model.FileExtraction{first, second, broken})
	shuffled := Aggregate([]model.FileExtraction{broken, second, first})

	for _, occ := range []*model.Occurrences{sequential, shuffled} {
		if occ.Len() != 3 {
			t.Fatalf("expected 3 extractions, got %d", occ.Len())
		}
		tokens := occ.Tokens()
		if len(tokens) != 2 || tokens[0] != "processEvent/process" || tokens[1] != "dnsLookupEvent/hostname" {
			t.Errorf("unexpected token order: %v", tokens)
		}
		procs := occ.Extractions("processEvent/process")
		if procs[0].File != "a.rule" || procs[1].File != "b.rule" {
			t.Errorf("unexpected extraction order: %+v", procs)
		}
	}
}

// TestAggregateEmpty tests the zero-file boundary.
func TestAggregateEmpty(t *testing.T) {
	t.Parallel()

	occ := Aggregate(nil)
	if occ.Len() != 0 || len(occ.Tokens()) != 0 {
		t.Errorf("expected empty occurrences, got %d", occ.Len())
	}
	if got := Detect(occ); got.Len() != 0 {
		t.Errorf("expected no findings, got %v", got)
	}
}

// TestDetect tests in-run duplicate detection.
func TestDetect(t *testing.T) {
	t.Parallel()

	occ := Aggregate([]model.FileExtraction{
		{Index: 0, File: "a.rule", Extractions: []model.Extraction{
			extraction(t, "processEvent/process", "a.rule", "svchost.exe"),
			extraction(t, "processEvent/process", "a.rule", "lsass.exe"),
		}},
		{Index: 1, File: "b.rule", Extractions: []model.Extraction{
			extraction(t, "processEvent/process", "b.rule", "svchost.exe"),
			extraction(t, "ipv4NetworkEvent/remotePort", "b.rule", 445),
		}},
		{Index: 2, File: "c.rule", Extractions: []model.Extraction{
			extraction(t, "ipv4NetworkEvent/remotePort", "c.rule", "445"),
		}},
	})

	findings := Detect(occ)
	if len(findings) != 1 {
		t.Fatalf("expected one token with duplicates, got %+v", findings)
	}

	got := findings.Lookup("processEvent/process")
	if len(got) != 1 {
		t.Fatalf("expected one finding, got %+v", got)
	}
	if got[0].Value.String() != "svchost.exe" || got[0].Count != 2 {
		t.Errorf("unexpected finding: %+v", got[0])
	}
	if len(got[0].Files) != 2 || got[0].Files[0] != "a.rule" || got[0].Files[1] != "b.rule" {
		t.Errorf("unexpected files: %v", got[0].Files)
	}

	if findings.Lookup("ipv4NetworkEvent/remotePort") != nil {
		t.Error("string and number with the same text must not be duplicates")
	}
}

// TestDetectRepeatsWithinFile tests that a file repeating a value is listed
// once per occurrence.
func TestDetectRepeatsWithinFile(t *testing.T) {
	t.Parallel()

	occ := Aggregate([]model.FileExtraction{
		{Index: 0, File: "a.rule", Extractions: []model.Extraction{
			extraction(t, "regKeyEvent/path", "a.rule", `HKLM\Run`),
			extraction(t, "regKeyEvent/path", "a.rule", `HKLM\Run`),
			extraction(t, "regKeyEvent/path", "a.rule", `HKLM\Run`),
		}},
	})

	got := Detect(occ).Lookup("regKeyEvent/path")
	if len(got) != 1 || got[0].Count != 3 || len(got[0].Files) != 3 {
		t.Fatalf("unexpected finding: %+v", got)
	}
}

// TestDetectCountMatchesOccurrences tests that every finding count equals
// the number of extractions sharing its token and value.
func TestDetectCountMatchesOccurrences(t *testing.T) {
	t.Parallel()

	values := []any{"a", "b", "a", 1, "c", 1, "a", true, true, nil, "b"}
	extractions := make([]model.Extraction, 0, len(values))
	for i, v := range values {
		tok := "processEvent/process"
		if i%2 == 1 {
			tok = "processEvent/username"
		}
		extractions = append(extractions, extraction(t, tok, "f.rule", v))
	}
	occ := Aggregate([]model.FileExtraction{{File: "f.rule", Extractions: extractions}})

	counts := make(map[model.Token]map[string]int)
	occ.Each(func(e model.Extraction) {
		if counts[e.Token] == nil {
			counts[e.Token] = make(map[string]int)
		}
		counts[e.Token][e.Value.Raw()]++
	})

	for _, tf := range Detect(occ) {
		for _, f := range tf.Findings {
			if f.Count != counts[tf.Token][f.Value.Raw()] {
				t.Errorf("%s %s: count %d, want %d", tf.Token, f.Value.Raw(), f.Count, counts[tf.Token][f.Value.Raw()])
			}
			if f.Count < 2 || len(f.Files) != f.Count {
				t.Errorf("%s %s: invalid finding %+v", tf.Token, f.Value.Raw(), f)
			}
		}
	}
}
