package search

import (
	"context"

	"github.com/fusedex/fusedex/internal/cache"
	domdoc "github.com/fusedex/fusedex/internal/domain/document"
)

// CollectionChecker verifies a collection exists before fan-out.
type CollectionChecker interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// DocumentReader hydrates fused candidates for post-filtering and response
// fields.
type DocumentReader interface {
	GetMany(ctx context.Context, collectionName string, ids []string) ([]domdoc.Document, error)
}

// ResultCache fronts the whole retrieve-fuse-rerank computation.
type ResultCache interface {
	GetOrCompute(ctx context.Context, parts cache.KeyParts, compute cache.ComputeFunc) (cache.Value, bool, error)
}
