package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fusedex/fusedex/internal/domain"
	domdoc "github.com/fusedex/fusedex/internal/domain/document"
	domjob "github.com/fusedex/fusedex/internal/domain/job"
	"github.com/fusedex/fusedex/internal/domain/user"
	"github.com/fusedex/fusedex/internal/normalize"
)

type mockWriter struct {
	mu      sync.Mutex
	batches [][]domdoc.Document
	fn      func(ctx context.Context, collectionName string, docs []domdoc.Document) error
}

func (m *mockWriter) UpsertBatch(ctx context.Context, collectionName string, docs []domdoc.Document) error {
	m.mu.Lock()
	m.batches = append(m.batches, docs)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, collectionName, docs)
	}
	return nil
}

func (m *mockWriter) written() []domdoc.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domdoc.Document
	for _, b := range m.batches {
		all = append(all, b...)
	}
	return all
}

type memJobStore struct {
	mu       sync.Mutex
	jobs     map[string]domjob.Job
	payloads map[string][]byte
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: map[string]domjob.Job{}, payloads: map[string][]byte{}}
}

func (m *memJobStore) Save(_ context.Context, j *domjob.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = *j
	return nil
}

func (m *memJobStore) Get(_ context.Context, id string) (domjob.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domjob.Job{}, domain.ErrJobNotFound
	}
	return j, nil
}

func (m *memJobStore) SavePayload(_ context.Context, id string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[id] = payload
	return nil
}

func (m *memJobStore) GetPayload(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payloads[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return p, nil
}

type mockColls struct {
	existsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockColls) Exists(ctx context.Context, name string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, name)
	}
	return true, nil
}

type mockQueue struct {
	mu  sync.Mutex
	ids []string
}

func (m *mockQueue) Enqueue(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, jobID)
	return nil
}

func (m *mockQueue) Dequeue(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ids) == 0 {
		return "", nil
	}
	id := m.ids[0]
	m.ids = m.ids[1:]
	return id, nil
}

func (m *mockQueue) Ack(_ context.Context, _ string) error { return nil }

func (m *mockQueue) Reclaim(_ context.Context) (int, error) { return 0, nil }

type mockEmbedder struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

type mockInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (m *mockInvalidator) Invalidate(_ context.Context, collection, tenant string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, collection+"/"+tenant)
	return nil
}

type testEnv struct {
	service  *Service
	writer   *mockWriter
	jobs     *memJobStore
	queue    *mockQueue
	embedder *mockEmbedder
	cache    *mockInvalidator
}

func newTestEnv(cfg Config) *testEnv {
	env := &testEnv{
		writer:   &mockWriter{},
		jobs:     newMemJobStore(),
		queue:    &mockQueue{},
		embedder: &mockEmbedder{},
		cache:    &mockInvalidator{},
	}
	env.service = New(
		env.writer, env.jobs, &mockColls{}, env.queue,
		env.embedder, env.cache, normalize.New(8192), cfg,
	)
	return env
}

func testIngestConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 100,
		BatchSize:    10,
		MaxAttempts:  3,
		BackoffBase:  time.Millisecond,
	}
}

func member(t interface{ Fatalf(string, ...any) }, tenant string) user.Context {
	u, err := user.New("user-1", tenant, user.RoleMember, 5)
	if err != nil {
		t.Fatalf("user.New: %v", err)
	}
	return u
}

func sourceJSON(t interface{ Fatalf(string, ...any) }, fields map[string]any) json.RawMessage {
	raw, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal source: %v", err)
	}
	return raw
}
