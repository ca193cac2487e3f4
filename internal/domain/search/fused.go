package search

// FusedResult is one entry of the merged ranking. Deterministic given the
// same candidate lists and weights.
type FusedResult struct {
	ID      string
	Score   float64
	Sources []Source
	// SourceScores keeps each source's local score for explainability.
	SourceScores map[Source]float64
	// Fields is populated from the document store after access post-filtering.
	Fields map[string]string
}

// HasSource reports whether the given source contributed to this result.
func (r *FusedResult) HasSource(s Source) bool {
	for _, src := range r.Sources {
		if src == s {
			return true
		}
	}
	return false
}
