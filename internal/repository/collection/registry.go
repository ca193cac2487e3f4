// Package collection tracks known collections and their FT indexes.
package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/fusedex/fusedex/internal/db"
	"github.com/fusedex/fusedex/internal/domain"
)

// store is the consumer interface for the registry (ISP).
type store interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Registry implements collection registration over a set plus FT indexes.
type Registry struct {
	store     store
	vectorDim int
}

// New creates a collection registry. vectorDim is the embedding dimensionality
// used for every collection's vector field.
func New(s store, vectorDim int) *Registry {
	return &Registry{store: s, vectorDim: vectorDim}
}

// Ensure registers a collection and creates its FT index if missing.
// Idempotent.
func (r *Registry) Ensure(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", domain.ErrValidation)
	}

	if err := r.store.SAdd(ctx, registryKey(), name); err != nil {
		return fmt.Errorf("register collection %s: %w", name, err)
	}

	exists, err := r.store.IndexExists(ctx, IndexName(name))
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return nil
	}

	def := indexDefinition(name, r.vectorDim)
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a collection has been registered.
func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := r.store.SIsMember(ctx, registryKey(), name)
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", name, err)
	}
	return ok, nil
}

// List returns all registered collections.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	names, err := r.store.SMembers(ctx, registryKey())
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

// IndexName returns the FT index name for a collection.
func IndexName(collection string) string {
	return fmt.Sprintf("%sidx:%s", domain.KeyPrefix, collection)
}

// DocPrefix returns the hash key prefix the collection's index covers.
func DocPrefix(collection string) string {
	return fmt.Sprintf("%sdoc:%s:", domain.KeyPrefix, collection)
}

func registryKey() string {
	return domain.KeyPrefix + "collections"
}

func indexDefinition(name string, vectorDim int) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     IndexName(name),
		Prefixes: []string{DocPrefix(name)},
		Fields: []db.IndexField{
			{Name: "__text", Type: db.IndexFieldText},
			{Name: "__tenant", Type: db.IndexFieldTag},
			{Name: "__access", Type: db.IndexFieldNumeric},
			{Name: "__parent", Type: db.IndexFieldTag},
			{
				Name:              "__vector",
				Type:              db.IndexFieldVector,
				VectorDim:         vectorDim,
				VectorM:           16,
				VectorEFConstruct: 200,
			},
		},
	}
}
