// Package search orchestrates the query path: fan-out to retrieval
// sources, weighted RRF fusion, access post-filtering, optional reranking
// and result caching.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fusedex/fusedex/internal/cache"
	"github.com/fusedex/fusedex/internal/domain"
	domdoc "github.com/fusedex/fusedex/internal/domain/document"
	domsearch "github.com/fusedex/fusedex/internal/domain/search"
	"github.com/fusedex/fusedex/internal/domain/search/request"
	"github.com/fusedex/fusedex/internal/domain/user"
	"github.com/fusedex/fusedex/internal/logger"
	"github.com/fusedex/fusedex/internal/metrics"
	"github.com/fusedex/fusedex/internal/retrieval"
	"github.com/fusedex/fusedex/internal/usecase/access"
)

// Config holds the fusion and fan-out settings.
type Config struct {
	RRFK        int
	PortTimeout time.Duration
	// Weights are the configured per-source defaults; the request may
	// override them.
	Weights    map[domsearch.Source]float64
	RerankTopN int
}

// Response is the outcome of one search.
type Response struct {
	Results  []domsearch.FusedResult
	Warnings []string
	Cached   bool
}

// Service handles hybrid retrieval across the registered sources.
type Service struct {
	ports    []retrieval.Port
	colls    CollectionChecker
	docs     DocumentReader
	reranker domsearch.Reranker
	cache    ResultCache
	cfg      Config
}

// New creates a search service. reranker may be nil when no cross-encoder
// is deployed.
func New(
	ports []retrieval.Port,
	colls CollectionChecker,
	docs DocumentReader,
	reranker domsearch.Reranker,
	resultCache ResultCache,
	cfg Config,
) *Service {
	if cfg.RRFK <= 0 {
		cfg.RRFK = DefaultRRFK
	}
	return &Service{
		ports:    ports,
		colls:    colls,
		docs:     docs,
		reranker: reranker,
		cache:    resultCache,
		cfg:      cfg,
	}
}

// Search runs the full query path for one caller.
func (s *Service) Search(
	ctx context.Context, collectionName string, req *request.Request, caller user.Context,
) (*Response, error) {
	exists, err := s.colls.Exists(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("collection %q: %w", collectionName, domain.ErrCollectionNotFound)
	}

	weights, err := s.resolveWeights(req)
	if err != nil {
		return nil, err
	}

	tenant, maxAccessLevel := access.Constraints(caller)

	parts := cache.KeyParts{
		Collection:     collectionName,
		Query:          req.Query(),
		Filters:        req.Filters(),
		TopK:           req.TopK(),
		Weights:        weights,
		Rerank:         req.UseReranker(),
		Tenant:         tenant,
		MaxAccessLevel: maxAccessLevel,
	}

	value, hit, err := s.cache.GetOrCompute(ctx, parts, func(ctx context.Context) (cache.Value, bool, error) {
		return s.compute(ctx, collectionName, req, caller, weights, tenant, maxAccessLevel)
	})
	if err != nil {
		return nil, err
	}

	return &Response{Results: value.Results, Warnings: value.Warnings, Cached: hit}, nil
}

// resolveWeights picks the effective fusion weights: explicit request
// weights win, then alpha (dense vs lexical), then the configured defaults.
func (s *Service) resolveWeights(req *request.Request) (map[domsearch.Source]float64, error) {
	if len(req.Weights()) > 0 {
		for source, w := range req.Weights() {
			if w < 0 {
				return nil, fmt.Errorf("negative weight %g for source %s: %w", w, source, domain.ErrFusion)
			}
		}
		return req.Weights(), nil
	}
	if a := req.Alpha(); a != nil {
		weights := map[domsearch.Source]float64{
			domsearch.SourceDense:   *a,
			domsearch.SourceLexical: 1 - *a,
		}
		// Alpha expresses the dense/lexical blend only. Any other
		// configured source sits outside that budget and is muted, so a
		// single hit from it cannot outvote the blend.
		for _, port := range s.ports {
			if _, ok := weights[port.Name()]; !ok {
				weights[port.Name()] = 0
			}
		}
		return weights, nil
	}
	return s.cfg.Weights, nil
}

// compute is the uncached query path. The bool reports whether the result
// is cacheable: degraded fan-outs are served but never stored.
func (s *Service) compute(
	ctx context.Context,
	collectionName string,
	req *request.Request,
	caller user.Context,
	weights map[domsearch.Source]float64,
	tenant string,
	maxAccessLevel int,
) (cache.Value, bool, error) {
	portK := req.TopK()
	if req.UseReranker() && s.reranker != nil && s.cfg.RerankTopN > portK {
		portK = s.cfg.RerankTopN
	}

	lists, warnings := s.fanOut(ctx, retrieval.Query{
		Collection:     collectionName,
		Text:           req.Query(),
		K:              portK,
		Tenant:         tenant,
		MaxAccessLevel: maxAccessLevel,
	})
	if len(lists) == 0 {
		return cache.Value{}, false, fmt.Errorf("%w: %v", domain.ErrRetrievalUnavailable, warnings)
	}
	degraded := len(warnings) > 0

	fused, err := fuseRRF(lists, weights, s.cfg.RRFK)
	if err != nil {
		return cache.Value{}, false, err
	}

	results, texts, err := s.hydrate(ctx, collectionName, fused, req.Filters(), caller)
	if err != nil {
		return cache.Value{}, false, err
	}

	if req.UseReranker() {
		results, warnings = s.rerank(ctx, req.Query(), results, texts, warnings)
	}

	if len(results) > req.TopK() {
		results = results[:req.TopK()]
	}

	return cache.Value{Results: results, Warnings: warnings}, !degraded, nil
}

// fanOut queries every source concurrently under its own timeout. Failed
// sources degrade to warnings; the query only fails when no source answers.
func (s *Service) fanOut(ctx context.Context, q retrieval.Query) ([]domsearch.RankedList, []string) {
	var mu sync.Mutex
	lists := make([]domsearch.RankedList, 0, len(s.ports))
	var warnings []string

	g, gctx := errgroup.WithContext(ctx)
	for _, port := range s.ports {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, s.cfg.PortTimeout)
			defer cancel()

			start := time.Now()
			list, err := port.Retrieve(pctx, q)
			metrics.RetrievalDuration.WithLabelValues(string(port.Name())).Observe(time.Since(start).Seconds())

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status := "error"
				if errors.Is(err, context.DeadlineExceeded) {
					status = "timeout"
				}
				metrics.RetrievalRequestsTotal.WithLabelValues(string(port.Name()), status).Inc()
				logger.FromContext(ctx).Warn("retrieval source failed",
					zap.String("source", string(port.Name())), zap.Error(err))
				warnings = append(warnings, fmt.Sprintf("source %s unavailable", port.Name()))
				return nil
			}
			metrics.RetrievalRequestsTotal.WithLabelValues(string(port.Name()), "success").Inc()
			lists = append(lists, list)
			return nil
		})
	}
	_ = g.Wait()

	// Deterministic fusion input and warning order.
	sort.Slice(lists, func(i, j int) bool { return lists[i].Source < lists[j].Source })
	sort.Strings(warnings)

	return lists, warnings
}

// hydrate fetches the fused candidates' documents, applies the access
// post-filter and the caller's field filters, and fills response fields.
// Candidates whose document vanished since retrieval are dropped.
func (s *Service) hydrate(
	ctx context.Context,
	collectionName string,
	fused []domsearch.FusedResult,
	filters map[string]string,
	caller user.Context,
) ([]domsearch.FusedResult, map[string]string, error) {
	ids := make([]string, len(fused))
	for i := range fused {
		ids[i] = fused[i].ID
	}

	docs, err := s.docs.GetMany(ctx, collectionName, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("hydrate results: %w", err)
	}
	byID := make(map[string]*domdoc.Document, len(docs))
	for i := range docs {
		byID[docs[i].ID()] = &docs[i]
	}

	results := make([]domsearch.FusedResult, 0, len(fused))
	texts := make(map[string]string, len(fused))
	for _, r := range fused {
		doc, ok := byID[r.ID]
		if !ok {
			continue
		}
		if !access.Allowed(caller, doc) {
			continue
		}
		if !matchesFilters(doc, filters) {
			continue
		}
		r.Fields = doc.Fields()
		results = append(results, r)
		texts[r.ID] = doc.PrimaryText()
	}
	return results, texts, nil
}

// rerank rescores the head of the ranking with the cross-encoder. A failed
// or missing reranker degrades to the fused order with a warning.
func (s *Service) rerank(
	ctx context.Context,
	query string,
	results []domsearch.FusedResult,
	texts map[string]string,
	warnings []string,
) ([]domsearch.FusedResult, []string) {
	if s.reranker == nil {
		return results, append(warnings, "reranker not configured")
	}

	n := len(results)
	if s.cfg.RerankTopN > 0 && s.cfg.RerankTopN < n {
		n = s.cfg.RerankTopN
	}
	// Nothing to reorder with fewer than two candidates.
	if n < 2 {
		return results, warnings
	}

	docs := make([]domsearch.RerankDoc, n)
	for i := 0; i < n; i++ {
		docs[i] = domsearch.RerankDoc{ID: results[i].ID, Text: texts[results[i].ID]}
	}

	scores, err := s.reranker.Rescore(ctx, query, docs)
	if err != nil {
		logger.FromContext(ctx).Warn("reranker failed", zap.Error(err))
		return results, append(warnings, "reranker unavailable")
	}

	head := results[:n]
	// Stable sort: documents the scorer omitted keep their fused order
	// below every scored one.
	sort.SliceStable(head, func(i, j int) bool {
		si, oki := scores[head[i].ID]
		sj, okj := scores[head[j].ID]
		if !oki {
			si = math.Inf(-1)
		}
		if !okj {
			sj = math.Inf(-1)
		}
		return si > sj
	})
	for i := range head {
		if s, ok := scores[head[i].ID]; ok {
			head[i].Score = s
		}
	}
	return results, warnings
}

// matchesFilters checks the caller's equality filters against the flat
// fields.
func matchesFilters(doc *domdoc.Document, filters map[string]string) bool {
	for k, v := range filters {
		if doc.Fields()[k] != v {
			return false
		}
	}
	return true
}
