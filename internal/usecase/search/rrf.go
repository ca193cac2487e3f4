package search

import (
	"fmt"
	"sort"

	"github.com/fusedex/fusedex/internal/domain"
	"github.com/fusedex/fusedex/internal/domain/search"
)

// DefaultRRFK is the Reciprocal Rank Fusion constant (standard value from
// Cormack et al. 2009).
const DefaultRRFK = 60

// fuseRRF merges per-source rankings via weighted Reciprocal Rank Fusion.
// score(d) = sum over sources of w_s / (k + rank_s(d)), ranks 1-based.
// Ties break by contributing-source count, then by ascending ID, so the
// output is deterministic for identical inputs.
func fuseRRF(lists []search.RankedList, weights map[search.Source]float64, k int) ([]search.FusedResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("rrf constant must be positive, got %d: %w", k, domain.ErrFusion)
	}
	for source, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("negative weight %g for source %s: %w", w, source, domain.ErrFusion)
		}
	}

	merged := make(map[string]*search.FusedResult)

	for _, list := range lists {
		w, ok := weights[list.Source]
		if !ok {
			w = 1.0
		}
		for rank, c := range list.Candidates {
			contribution := w / float64(k+rank+1)
			entry, ok := merged[c.ID]
			if !ok {
				entry = &search.FusedResult{
					ID:           c.ID,
					SourceScores: make(map[search.Source]float64),
				}
				merged[c.ID] = entry
			}
			entry.Score += contribution
			entry.Sources = append(entry.Sources, list.Source)
			entry.SourceScores[list.Source] = c.Score
		}
	}

	results := make([]search.FusedResult, 0, len(merged))
	for _, entry := range merged {
		results = append(results, *entry)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if len(results[i].Sources) != len(results[j].Sources) {
			return len(results[i].Sources) > len(results[j].Sources)
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}
