package search

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/fusedex/fusedex/internal/cache"
	"github.com/fusedex/fusedex/internal/db"
	domdoc "github.com/fusedex/fusedex/internal/domain/document"
	domsearch "github.com/fusedex/fusedex/internal/domain/search"
	"github.com/fusedex/fusedex/internal/domain/search/request"
	"github.com/fusedex/fusedex/internal/domain/user"
	"github.com/fusedex/fusedex/internal/retrieval"
)

// mockPort implements retrieval.Port for tests.
type mockPort struct {
	name       domsearch.Source
	retrieveFn func(ctx context.Context, q retrieval.Query) (domsearch.RankedList, error)
}

func (m *mockPort) Name() domsearch.Source { return m.name }

func (m *mockPort) Retrieve(ctx context.Context, q retrieval.Query) (domsearch.RankedList, error) {
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, q)
	}
	return domsearch.RankedList{Source: m.name}, nil
}

// rankedPort returns a port that always serves the given IDs in order.
func rankedPort(name domsearch.Source, ids ...string) *mockPort {
	return &mockPort{
		name: name,
		retrieveFn: func(_ context.Context, _ retrieval.Query) (domsearch.RankedList, error) {
			candidates := make([]domsearch.Candidate, len(ids))
			for i, id := range ids {
				candidates[i] = domsearch.Candidate{
					ID:     id,
					Score:  1.0 - float64(i)*0.1,
					Source: name,
				}
			}
			return domsearch.RankedList{Source: name, Candidates: candidates}, nil
		},
	}
}

// mockColls implements CollectionChecker.
type mockColls struct {
	existsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockColls) Exists(ctx context.Context, name string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, name)
	}
	return true, nil
}

// mockDocs implements DocumentReader.
type mockDocs struct {
	getManyFn func(ctx context.Context, collectionName string, ids []string) ([]domdoc.Document, error)
}

func (m *mockDocs) GetMany(ctx context.Context, collectionName string, ids []string) ([]domdoc.Document, error) {
	if m.getManyFn != nil {
		return m.getManyFn(ctx, collectionName, ids)
	}
	return nil, nil
}

// docsFor builds a DocumentReader serving the given documents by ID.
func docsFor(docs ...domdoc.Document) *mockDocs {
	byID := make(map[string]domdoc.Document, len(docs))
	for _, d := range docs {
		byID[d.ID()] = d
	}
	return &mockDocs{
		getManyFn: func(_ context.Context, _ string, ids []string) ([]domdoc.Document, error) {
			out := make([]domdoc.Document, 0, len(ids))
			for _, id := range ids {
				if d, ok := byID[id]; ok {
					out = append(out, d)
				}
			}
			return out, nil
		},
	}
}

// mockReranker implements domsearch.Reranker.
type mockReranker struct {
	rescoreFn func(ctx context.Context, query string, docs []domsearch.RerankDoc) (map[string]float64, error)
}

func (m *mockReranker) Rescore(
	ctx context.Context, query string, docs []domsearch.RerankDoc,
) (map[string]float64, error) {
	if m.rescoreFn != nil {
		return m.rescoreFn(ctx, query, docs)
	}
	return map[string]float64{}, nil
}

// memCounters backs a real cache.Coordinator with in-test generation
// counters.
type memCounters struct{ counts map[string]int64 }

func newMemCounters() *memCounters {
	return &memCounters{counts: map[string]int64{}}
}

func (c *memCounters) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.counts[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(strconv.FormatInt(v, 10)), nil
}

func (c *memCounters) Incr(_ context.Context, key string) (int64, error) {
	c.counts[key]++
	return c.counts[key], nil
}

// passthroughCache always computes and records whether the value was
// cacheable.
type passthroughCache struct {
	lastCacheable bool
	computed      int
}

func (c *passthroughCache) GetOrCompute(
	ctx context.Context, _ cache.KeyParts, compute cache.ComputeFunc,
) (cache.Value, bool, error) {
	c.computed++
	v, cacheable, err := compute(ctx)
	c.lastCacheable = cacheable
	return v, false, err
}

func testConfig() Config {
	return Config{
		RRFK:        60,
		PortTimeout: time.Second,
		Weights: map[domsearch.Source]float64{
			domsearch.SourceDense:   1,
			domsearch.SourceLexical: 1,
			domsearch.SourceNeural:  1,
		},
		RerankTopN: 50,
	}
}

func member(t *testing.T, tenant string, maxLevel int) user.Context {
	t.Helper()
	u, err := user.New("user-1", tenant, user.RoleMember, maxLevel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return u
}

func mustRequest(t *testing.T, query string, topK int) *request.Request {
	t.Helper()
	req, err := request.New(query, topK, nil, nil, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &req
}

func tenantDoc(id, tenant string, level int, fields map[string]string) domdoc.Document {
	return domdoc.Reconstruct(id, "", tenant, level, "text of "+id, fields, nil, 1)
}
