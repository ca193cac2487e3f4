package retrieval

import (
	"context"
	"fmt"

	"github.com/fusedex/fusedex/internal/db"
	"github.com/fusedex/fusedex/internal/domain/search"
	"github.com/fusedex/fusedex/internal/repository/collection"
)

// LexicalPort retrieves by BM25 term matching over the primary text.
type LexicalPort struct {
	searcher db.Searcher
}

// NewLexicalPort creates the lexical retrieval port.
func NewLexicalPort(searcher db.Searcher) *LexicalPort {
	return &LexicalPort{searcher: searcher}
}

// Name identifies this source in fused results.
func (p *LexicalPort) Name() search.Source { return search.SourceLexical }

// Retrieve runs a filtered BM25 search over the collection's text field.
func (p *LexicalPort) Retrieve(ctx context.Context, q Query) (search.RankedList, error) {
	result, err := p.searcher.SearchBM25(ctx, &db.TextQuery{
		IndexName: collection.IndexName(q.Collection),
		Query:     q.Text,
		Filter:    pushdownFilter(q),
		TopK:      q.K,
	})
	if err != nil {
		return search.RankedList{}, fmt.Errorf("bm25 search: %w", err)
	}

	return toRankedList(search.SourceLexical, q.Collection, result), nil
}
