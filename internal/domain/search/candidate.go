// Package search holds the transient retrieval and fusion result types.
package search

// Source identifies a retrieval signal. Scores are source-local and not
// comparable across sources until fused.
type Source string

const (
	// SourceDense is embedding-vector similarity search.
	SourceDense Source = "dense"
	// SourceLexical is term-frequency (BM25) search.
	SourceLexical Source = "lexical"
	// SourceNeural is neural sparse (activation-based) search.
	SourceNeural Source = "neural"
)

// Candidate is one ranked hit from a single source. Produced transiently
// per query, never persisted.
type Candidate struct {
	ID     string
	Score  float64
	Source Source
}

// RankedList is one source's ordered response for a query, descending by
// source-local score.
type RankedList struct {
	Source     Source
	Candidates []Candidate
}
