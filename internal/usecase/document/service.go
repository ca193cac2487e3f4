// Package document exposes single-document reads and deletes with the same
// access enforcement as search.
package document

import (
	"context"
	"fmt"

	"github.com/fusedex/fusedex/internal/domain"
	domdoc "github.com/fusedex/fusedex/internal/domain/document"
	"github.com/fusedex/fusedex/internal/domain/user"
	"github.com/fusedex/fusedex/internal/usecase/access"
)

// Repository is the document persistence contract.
type Repository interface {
	Get(ctx context.Context, collectionName, id string) (domdoc.Document, error)
	Delete(ctx context.Context, collectionName, id string) error
}

// CollectionChecker verifies the target collection exists.
type CollectionChecker interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// Invalidator bumps the result cache generation after deletes.
type Invalidator interface {
	Invalidate(ctx context.Context, collection, tenant string) error
}

// Service serves document lookups and deletions.
type Service struct {
	docs  Repository
	colls CollectionChecker
	cache Invalidator
}

// New creates the document service.
func New(docs Repository, colls CollectionChecker, cache Invalidator) *Service {
	return &Service{docs: docs, colls: colls, cache: cache}
}

// Get returns one document the caller is allowed to see. Documents outside
// the caller's reach read as not found, the same as truly missing ones.
func (s *Service) Get(ctx context.Context, collectionName, id string, caller user.Context) (domdoc.Document, error) {
	if err := s.checkCollection(ctx, collectionName); err != nil {
		return domdoc.Document{}, err
	}

	doc, err := s.docs.Get(ctx, collectionName, id)
	if err != nil {
		return domdoc.Document{}, err
	}
	if !access.Allowed(caller, &doc) {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

// Delete removes a document (and its chunks) and invalidates cached results
// for the owning tenant. The same visibility rule as Get applies.
func (s *Service) Delete(ctx context.Context, collectionName, id string, caller user.Context) error {
	doc, err := s.Get(ctx, collectionName, id, caller)
	if err != nil {
		return err
	}

	if err := s.docs.Delete(ctx, collectionName, id); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, collectionName, doc.TenantID())
}

func (s *Service) checkCollection(ctx context.Context, name string) error {
	exists, err := s.colls.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound)
	}
	return nil
}
