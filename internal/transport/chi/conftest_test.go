package chi

import (
	"context"
	"net/http"
	"sync"
	"time"

	chiRouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fusedex/fusedex/internal/cache"
	"github.com/fusedex/fusedex/internal/domain"
	domdoc "github.com/fusedex/fusedex/internal/domain/document"
	domjob "github.com/fusedex/fusedex/internal/domain/job"
	domsearch "github.com/fusedex/fusedex/internal/domain/search"
	"github.com/fusedex/fusedex/internal/normalize"
	"github.com/fusedex/fusedex/internal/retrieval"
	documentuc "github.com/fusedex/fusedex/internal/usecase/document"
	healthuc "github.com/fusedex/fusedex/internal/usecase/health"
	ingestuc "github.com/fusedex/fusedex/internal/usecase/ingest"
	searchuc "github.com/fusedex/fusedex/internal/usecase/search"
)

// --- Stub infrastructure ---

type stubPort struct {
	name domsearch.Source
	ids  []string
}

func (p *stubPort) Name() domsearch.Source { return p.name }

func (p *stubPort) Retrieve(_ context.Context, _ retrieval.Query) (domsearch.RankedList, error) {
	list := domsearch.RankedList{Source: p.name}
	for i, id := range p.ids {
		list.Candidates = append(list.Candidates, domsearch.Candidate{
			ID: id, Score: 1.0 - float64(i)*0.1, Source: p.name,
		})
	}
	return list, nil
}

type stubColls struct{ exists bool }

func (c *stubColls) Exists(context.Context, string) (bool, error) { return c.exists, nil }

type stubDocReader struct{ docs map[string]domdoc.Document }

func (r *stubDocReader) GetMany(_ context.Context, _ string, ids []string) ([]domdoc.Document, error) {
	var out []domdoc.Document
	for _, id := range ids {
		if d, ok := r.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

type passCache struct{}

func (passCache) GetOrCompute(
	ctx context.Context, _ cache.KeyParts, compute cache.ComputeFunc,
) (cache.Value, bool, error) {
	v, _, err := compute(ctx)
	return v, false, err
}

type stubDocRepo struct {
	doc     domdoc.Document
	missing bool
	err     error
	deleted []string
}

func (r *stubDocRepo) Get(context.Context, string, string) (domdoc.Document, error) {
	if r.err != nil {
		return domdoc.Document{}, r.err
	}
	if r.missing {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return r.doc, nil
}

func (r *stubDocRepo) Delete(_ context.Context, _ string, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

type stubInvalidator struct{}

func (stubInvalidator) Invalidate(context.Context, string, string) error { return nil }

type stubJobStore struct {
	mu       sync.Mutex
	jobs     map[string]domjob.Job
	payloads map[string][]byte
}

func newStubJobStore() *stubJobStore {
	return &stubJobStore{jobs: map[string]domjob.Job{}, payloads: map[string][]byte{}}
}

func (s *stubJobStore) Save(_ context.Context, j *domjob.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = *j
	return nil
}

func (s *stubJobStore) Get(_ context.Context, id string) (domjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domjob.Job{}, domain.ErrJobNotFound
	}
	return j, nil
}

func (s *stubJobStore) SavePayload(_ context.Context, id string, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[id] = p
	return nil
}

func (s *stubJobStore) GetPayload(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloads[id], nil
}

type stubQueue struct{ ids []string }

func (q *stubQueue) Enqueue(_ context.Context, id string) error {
	q.ids = append(q.ids, id)
	return nil
}

func (q *stubQueue) Dequeue(context.Context) (string, error) { return "", nil }

func (q *stubQueue) Ack(context.Context, string) error { return nil }

func (q *stubQueue) Reclaim(context.Context) (int, error) { return 0, nil }

type stubWriter struct{}

func (stubWriter) UpsertBatch(context.Context, string, []domdoc.Document) error { return nil }

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

type stubPinger struct{ err error }

func (p *stubPinger) Ping(context.Context) error { return p.err }

// --- Test server assembly ---

type testServer struct {
	router  http.Handler
	docRepo *stubDocRepo
	jobs    *stubJobStore
	queue   *stubQueue
}

func newTestServer() *testServer {
	tenantDoc := domdoc.Reconstruct(
		"doc-1", "", "tenant-a", 0, "hello world",
		map[string]string{"lang": "en"}, nil, 1,
	)
	otherDoc := domdoc.Reconstruct(
		"doc-2", "", "tenant-a", 0, "other text",
		map[string]string{"lang": "de"}, nil, 1,
	)

	searchSvc := searchuc.New(
		[]retrieval.Port{&stubPort{name: domsearch.SourceDense, ids: []string{"doc-1", "doc-2"}}},
		&stubColls{exists: true},
		&stubDocReader{docs: map[string]domdoc.Document{"doc-1": tenantDoc, "doc-2": otherDoc}},
		nil,
		passCache{},
		searchuc.Config{PortTimeout: time.Second},
	)

	docRepo := &stubDocRepo{doc: tenantDoc}
	docSvc := documentuc.New(docRepo, &stubColls{exists: true}, stubInvalidator{})

	jobs := newStubJobStore()
	q := &stubQueue{}
	ingestSvc := ingestuc.New(
		stubWriter{}, jobs, &stubColls{exists: true}, q,
		stubEmbedder{}, stubInvalidator{}, normalize.New(8192),
		ingestuc.Config{ChunkSize: 1000, ChunkOverlap: 100, BatchSize: 10, MaxAttempts: 1, BackoffBase: time.Millisecond},
	)

	healthSvc := healthuc.New(&stubPinger{}, nil, nil, nil)

	server := NewServer(searchSvc, docSvc, ingestSvc, healthSvc, zap.NewNop(), time.Second)
	r := chiRouter.NewRouter()
	r.Use(IdentityMiddleware())
	server.Routes(r)

	return &testServer{router: r, docRepo: docRepo, jobs: jobs, queue: q}
}

func setIdentity(req *http.Request) {
	req.Header.Set(headerUserID, "user-1")
	req.Header.Set(headerTenantID, "tenant-a")
	req.Header.Set(headerRole, "member")
	req.Header.Set(headerMaxAccessLevel, "5")
}
