package domain

import "errors"

var (
	// ErrValidation signals a malformed document or query. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrAuth signals a tenant or role predicate violation before any read.
	ErrAuth = errors.New("access denied")
	// ErrRetrievalUnavailable signals that every retrieval source failed for a query.
	ErrRetrievalUnavailable = errors.New("all retrieval sources unavailable")
	// ErrEmbeddingProvider signals an upstream embedding API failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrStoreUnavailable signals the document or cache store is unreachable
	// after internal retries.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrTimeout signals the request exceeded its deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrFusion signals an internal fusion invariant violation (e.g. negative
	// weight). Never silently corrected.
	ErrFusion = errors.New("fusion invariant violated")

	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrJobNotFound signals a missing or expired ingestion job record.
	ErrJobNotFound = errors.New("job not found")
	// ErrCollectionNotFound signals a write against an unknown collection.
	ErrCollectionNotFound = errors.New("collection not found")
)
