// Package request holds the validated search query value object.
package request

import (
	"fmt"
	"strings"

	dom "github.com/fusedex/fusedex/internal/domain"
	"github.com/fusedex/fusedex/internal/domain/search"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultTopK    = 10
	MaxTopK        = 500
)

// Request is a validated search query.
type Request struct {
	query       string
	topK        int
	weights     map[search.Source]float64
	alpha       *float64
	useReranker bool
	filters     map[string]string
}

// New validates and normalizes search parameters.
// Query text is trimmed, space-collapsed and lowercased so that equivalent
// queries share one cache entry. Explicit weights take precedence over
// alpha; alpha only applies when exactly dense+lexical are active.
func New(
	query string,
	topK int,
	weights map[search.Source]float64,
	alpha *float64,
	useReranker bool,
	filters map[string]string,
) (Request, error) {
	normalized := normalizeQuery(query)
	if normalized == "" {
		return Request{}, fmt.Errorf("query is required: %w", dom.ErrValidation)
	}
	if len(normalized) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars): %w", MaxQueryLength, dom.ErrValidation)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if alpha != nil && (*alpha < 0 || *alpha > 1) {
		return Request{}, fmt.Errorf("alpha must be between 0 and 1: %w", dom.ErrValidation)
	}

	return Request{
		query:       normalized,
		topK:        topK,
		weights:     weights,
		alpha:       alpha,
		useReranker: useReranker,
		filters:     filters,
	}, nil
}

// Query returns the normalized search query text.
func (r *Request) Query() string { return r.query }

// TopK returns the number of final results requested.
func (r *Request) TopK() int { return r.topK }

// Weights returns the explicit per-source fusion weights (may be empty).
func (r *Request) Weights() map[search.Source]float64 { return r.weights }

// Alpha returns the two-source convenience weight (nil when not given).
func (r *Request) Alpha() *float64 { return r.alpha }

// UseReranker reports whether the cross-encoder stage was requested.
func (r *Request) UseReranker() bool { return r.useReranker }

// Filters returns the caller's equality filters on flat fields.
func (r *Request) Filters() map[string]string { return r.filters }

// normalizeQuery trims, collapses whitespace runs and lowercases.
func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
