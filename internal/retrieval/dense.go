package retrieval

import (
	"context"
	"fmt"

	"github.com/fusedex/fusedex/internal/db"
	"github.com/fusedex/fusedex/internal/domain"
	"github.com/fusedex/fusedex/internal/domain/search"
	"github.com/fusedex/fusedex/internal/repository/collection"
	"github.com/fusedex/fusedex/internal/repository/document"
)

// DensePort retrieves by embedding-vector similarity (KNN over HNSW).
type DensePort struct {
	embedder domain.Embedder
	searcher db.Searcher
}

// NewDensePort creates the dense retrieval port.
func NewDensePort(embedder domain.Embedder, searcher db.Searcher) *DensePort {
	return &DensePort{embedder: embedder, searcher: searcher}
}

// Name identifies this source in fused results.
func (p *DensePort) Name() search.Source { return search.SourceDense }

// Retrieve embeds the query text and runs a filtered KNN search.
func (p *DensePort) Retrieve(ctx context.Context, q Query) (search.RankedList, error) {
	emb, err := p.embedder.Embed(ctx, q.Text)
	if err != nil {
		return search.RankedList{}, fmt.Errorf("embed query: %w", err)
	}

	result, err := p.searcher.SearchKNN(ctx, &db.KNNQuery{
		IndexName: collection.IndexName(q.Collection),
		Vector:    emb.Embedding,
		Filter:    pushdownFilter(q),
		K:         q.K,
	})
	if err != nil {
		return search.RankedList{}, fmt.Errorf("knn search: %w", err)
	}

	return toRankedList(search.SourceDense, q.Collection, result), nil
}

// toRankedList converts store entries into source candidates.
func toRankedList(src search.Source, collectionName string, result *db.SearchResult) search.RankedList {
	candidates := make([]search.Candidate, 0, len(result.Entries))
	for _, e := range result.Entries {
		candidates = append(candidates, search.Candidate{
			ID:     document.ExtractID(e.Key, collectionName),
			Score:  e.Score,
			Source: src,
		})
	}
	return search.RankedList{Source: src, Candidates: candidates}
}
