package search

import "context"

// RerankDoc is one candidate handed to the cross-encoder stage.
type RerankDoc struct {
	ID   string
	Text string
}

// Reranker rescores query/document pairs. Documents missing from the
// returned map keep their fused ordering.
type Reranker interface {
	Rescore(ctx context.Context, query string, docs []RerankDoc) (map[string]float64, error)
}
