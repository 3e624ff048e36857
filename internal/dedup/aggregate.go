package dedup

import (
	"sort"

	"github.com/nao1215/iocchecker/internal/model"
)

// Aggregator builds an Occurrences set from per-file results.
// It is not safe for concurrent use; callers collect results first and add
// them from a single goroutine.
type Aggregator struct {
	pending []model.FileExtraction
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{pending: make([]model.FileExtraction, 0)}
}

// Add records the result of one file. Results may be added in any order.
func (a *Aggregator) Add(result model.FileExtraction) {
	a.pending = append(a.pending, result)
}

// Occurrences folds every added result, in discovery index order, into a
// new occurrence set. Results that carry an error contribute nothing.
func (a *Aggregator) Occurrences() *model.Occurrences {
	ordered := make([]model.FileExtraction, len(a.pending))
	copy(ordered, a.pending)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})

	occ := model.NewOccurrences()
	for _, r := range ordered {
		if r.Err != nil {
			continue
		}
		for _, e := range r.Extractions {
			occ.Append(e)
		}
	}
	return occ
}

// Aggregate is shorthand for adding every result and calling Occurrences.
func Aggregate(results []model.FileExtraction) *model.Occurrences {
	a := NewAggregator()
	for _, r := range results {
		a.Add(r)
	}
	return a.Occurrences()
}
