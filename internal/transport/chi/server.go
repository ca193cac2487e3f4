// Package chi exposes the HTTP API: hybrid search, asynchronous ingestion,
// single-document access, job polling, health and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fusedex/fusedex/internal/db"
	"github.com/fusedex/fusedex/internal/domain"
	domjob "github.com/fusedex/fusedex/internal/domain/job"
	domsearch "github.com/fusedex/fusedex/internal/domain/search"
	"github.com/fusedex/fusedex/internal/domain/search/request"
	documentuc "github.com/fusedex/fusedex/internal/usecase/document"
	healthuc "github.com/fusedex/fusedex/internal/usecase/health"
	ingestuc "github.com/fusedex/fusedex/internal/usecase/ingest"
	searchuc "github.com/fusedex/fusedex/internal/usecase/search"
)

const maxIngestBatch = 100

// errorCode identifies the error class in API responses.
type errorCode string

const (
	codeBadRequest           errorCode = "bad_request"
	codeValidationFailed     errorCode = "validation_failed"
	codeAccessDenied         errorCode = "access_denied"
	codeCollectionNotFound   errorCode = "collection_not_found"
	codeDocumentNotFound     errorCode = "document_not_found"
	codeJobNotFound          errorCode = "job_not_found"
	codeRetrievalUnavailable errorCode = "retrieval_unavailable"
	codeEmbeddingProvider    errorCode = "embedding_provider_error"
	codeStoreUnavailable     errorCode = "store_unavailable"
	codeTimeout              errorCode = "timeout"
	codeInternalError        errorCode = "internal_error"
)

// errorResponse is the uniform API error body.
type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers over the use case services.
type Server struct {
	search        *searchuc.Service
	documents     *documentuc.Service
	ingest        *ingestuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	waitCap       time.Duration
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. waitCap bounds how long a job
// status request may block when the caller asks to wait.
func NewServer(
	search *searchuc.Service,
	documents *documentuc.Service,
	ingest *ingestuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
	waitCap time.Duration,
) *Server {
	s := &Server{
		search:    search,
		documents: documents,
		ingest:    ingest,
		health:    health,
		logger:    logger,
		waitCap:   waitCap,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrFusion, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrAuth, http.StatusForbidden, codeAccessDenied),
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, codeCollectionNotFound),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrJobNotFound, http.StatusNotFound, codeJobNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeJobNotFound),
		sentinelHandler(domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, codeRetrievalUnavailable),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, codeTimeout),
	}
	return s
}

// Routes mounts every API route on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/collections/{collection}/search", s.SearchDocuments)
		r.Post("/collections/{collection}/documents", s.IngestDocuments)
		r.Get("/collections/{collection}/documents/{id}", s.GetDocument)
		r.Delete("/collections/{collection}/documents/{id}", s.DeleteDocument)
		r.Get("/jobs/{id}", s.GetJob)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// --- Wire types ---

type searchRequest struct {
	Query   string             `json:"query"`
	TopK    int                `json:"top_k,omitempty"`
	Weights map[string]float64 `json:"weights,omitempty"`
	Alpha   *float64           `json:"alpha,omitempty"`
	Rerank  bool               `json:"rerank,omitempty"`
	Filters map[string]string  `json:"filters,omitempty"`
}

type searchResultItem struct {
	ID           string             `json:"document_id"`
	Score        float64            `json:"fused_score"`
	Sources      []string           `json:"contributing_sources"`
	SourceScores map[string]float64 `json:"source_scores,omitempty"`
	Fields       map[string]string  `json:"fields,omitempty"`
}

type searchResponse struct {
	Items    []searchResultItem `json:"items"`
	Total    int                `json:"total"`
	Cached   bool               `json:"cached"`
	Warnings []string           `json:"warnings,omitempty"`
}

type ingestRequest struct {
	Documents []ingestuc.DocInput `json:"documents"`
	// Wait blocks the response until the job finishes or the bounded
	// poll elapses, in which case the non-terminal record is returned.
	Wait bool `json:"wait,omitempty"`
}

// --- Handlers ---

// SearchDocuments handles POST /collections/{collection}/search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeAccessDenied, "missing caller identity")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	searchReq, err := request.New(
		req.Query, req.TopK, weightsFromWire(req.Weights), req.Alpha, req.Rerank, req.Filters,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.search.Search(r.Context(), chi.URLParam(r, "collection"), &searchReq, caller)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = resultToWire(&resp.Results[i])
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Items:    items,
		Total:    len(items),
		Cached:   resp.Cached,
		Warnings: resp.Warnings,
	})
}

// IngestDocuments handles POST /collections/{collection}/documents. The
// batch is accepted for asynchronous processing; the response carries the
// job to poll.
func (s *Server) IngestDocuments(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeAccessDenied, "missing caller identity")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 || len(req.Documents) > maxIngestBatch {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"documents count must be between 1 and "+strconv.Itoa(maxIngestBatch))
		return
	}

	j, err := s.ingest.Submit(r.Context(), chi.URLParam(r, "collection"), caller, req.Documents)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if req.Wait {
		j = s.awaitJob(r, j.ID, j, s.waitCap)
	}

	w.Header().Set("Location", "/api/v1/jobs/"+j.ID)
	writeJSON(w, http.StatusAccepted, j)
}

// GetDocument handles GET /collections/{collection}/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeAccessDenied, "missing caller identity")
		return
	}

	doc, err := s.documents.Get(
		r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), caller,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":           doc.ID(),
		"parent_id":    doc.ParentID(),
		"tenant_id":    doc.TenantID(),
		"access_level": doc.AccessLevel(),
		"primary_text": doc.PrimaryText(),
		"fields":       doc.Fields(),
		"version":      doc.Version(),
	})
}

// DeleteDocument handles DELETE /collections/{collection}/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeAccessDenied, "missing caller identity")
		return
	}

	err := s.documents.Delete(
		r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), caller,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetJob handles GET /jobs/{id}. With ?wait_sec=N the handler polls until
// the job reaches a terminal state or the bounded wait elapses, then
// returns whatever state the job is in.
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	j, err := s.ingest.Status(r.Context(), jobID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if wait := parseWait(r, s.waitCap); wait > 0 && !j.Status.IsTerminal() {
		j = s.awaitJob(r, jobID, j, wait)
	}

	writeJSON(w, http.StatusOK, j)
}

func (s *Server) awaitJob(r *http.Request, jobID string, last domjob.Job, wait time.Duration) domjob.Job {
	deadline := time.After(wait)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return last
		case <-deadline:
			return last
		case <-ticker.C:
			j, err := s.ingest.Status(r.Context(), jobID)
			if err != nil {
				return last
			}
			last = j
			if j.Status.IsTerminal() {
				return j
			}
		}
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// --- Helpers ---

func parseWait(r *http.Request, waitCap time.Duration) time.Duration {
	raw := r.URL.Query().Get("wait_sec")
	if raw == "" {
		return 0
	}
	sec, err := strconv.Atoi(raw)
	if err != nil || sec <= 0 {
		return 0
	}
	wait := time.Duration(sec) * time.Second
	if wait > waitCap {
		wait = waitCap
	}
	return wait
}

func weightsFromWire(w map[string]float64) map[domsearch.Source]float64 {
	if len(w) == 0 {
		return nil
	}
	out := make(map[domsearch.Source]float64, len(w))
	for k, v := range w {
		out[domsearch.Source(k)] = v
	}
	return out
}

func resultToWire(res *domsearch.FusedResult) searchResultItem {
	sources := make([]string, len(res.Sources))
	for i, src := range res.Sources {
		sources[i] = string(src)
	}
	var scores map[string]float64
	if len(res.SourceScores) > 0 {
		scores = make(map[string]float64, len(res.SourceScores))
		for src, v := range res.SourceScores {
			scores[string(src)] = v
		}
	}
	return searchResultItem{
		ID:           res.ID,
		Score:        res.Score,
		Sources:      sources,
		SourceScores: scores,
		Fields:       res.Fields,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrAuth,
		domain.ErrCollectionNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrJobNotFound,
		domain.ErrNotFound,
		domain.ErrRetrievalUnavailable,
		domain.ErrStoreUnavailable,
		domain.ErrEmbeddingProvider,
		domain.ErrTimeout,
		domain.ErrFusion,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// mapInfraError folds infrastructure failures into their domain sentinels.
// The store driver retries transient network errors itself, so a db.Error
// surfacing here means the store stayed unreachable; an expired request
// deadline is a timeout, not an internal error.
func mapInfraError(err error) error {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return fmt.Errorf("%s: %w", dbErr.Op, domain.ErrStoreUnavailable)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout
	}
	return err
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	err = mapInfraError(err)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
