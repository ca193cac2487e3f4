// Package retrieval defines the polymorphic source port and its built-in
// implementations. Adding a source means implementing Port and registering
// it with the search service.
package retrieval

import (
	"context"

	"github.com/fusedex/fusedex/internal/domain/search"
)

// NoAccessCap disables access-level pushdown on a query.
const NoAccessCap = -1

// Query is a single-source retrieval request. Tenant and MaxAccessLevel are
// pushed into the source when it can evaluate them; the caller still
// post-filters every candidate.
type Query struct {
	Collection string
	Text       string
	K          int
	// Tenant restricts candidates to one tenant. Empty means no restriction.
	Tenant string
	// MaxAccessLevel caps candidate visibility. NoAccessCap means no cap.
	MaxAccessLevel int
}

// Port is one retrieval signal. Implementations return up to K candidates
// ordered by descending source-local score.
type Port interface {
	Name() search.Source
	Retrieve(ctx context.Context, q Query) (search.RankedList, error)
}
