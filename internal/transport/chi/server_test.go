package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fusedex/fusedex/internal/db"
	domjob "github.com/fusedex/fusedex/internal/domain/job"
)

func TestSearchDocuments_OK(t *testing.T) {
	ts := newTestServer()

	body := `{"query": "hello", "top_k": 5}`
	req := httptest.NewRequest("POST", "/api/v1/collections/docs/search", strings.NewReader(body))
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Fatalf("expected 2 results, got %+v", resp)
	}
	if resp.Items[0].ID != "doc-1" {
		t.Errorf("expected doc-1 first, got %q", resp.Items[0].ID)
	}
	if len(resp.Items[0].Sources) != 1 || resp.Items[0].Sources[0] != "dense" {
		t.Errorf("unexpected sources: %v", resp.Items[0].Sources)
	}
}

func TestSearchDocuments_EmptyQuery_400(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest("POST", "/api/v1/collections/docs/search", strings.NewReader(`{"query": ""}`))
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != codeValidationFailed {
		t.Errorf("error code: got %s, want %s", errResp.Code, codeValidationFailed)
	}
}

func TestSearchDocuments_MalformedBody_400(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest("POST", "/api/v1/collections/docs/search", strings.NewReader(`{not json`))
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSearchDocuments_NoIdentity_401(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest("POST", "/api/v1/collections/docs/search", strings.NewReader(`{"query": "x"}`))
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestIngestDocuments_Accepted(t *testing.T) {
	ts := newTestServer()

	body := `{"documents": [{"id": "doc-9", "source": {"text": "hello"}}]}`
	req := httptest.NewRequest("POST", "/api/v1/collections/docs/documents", strings.NewReader(body))
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusAccepted, rr.Body.String())
	}

	var j domjob.Job
	if err := json.NewDecoder(rr.Body).Decode(&j); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if j.Status != domjob.Queued || j.ID == "" {
		t.Errorf("unexpected job: %+v", j)
	}
	if loc := rr.Header().Get("Location"); loc != "/api/v1/jobs/"+j.ID {
		t.Errorf("unexpected Location header %q", loc)
	}
	if len(ts.queue.ids) != 1 {
		t.Errorf("job not enqueued: %v", ts.queue.ids)
	}
}

func TestIngestDocuments_EmptyBatch_400(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest("POST", "/api/v1/collections/docs/documents",
		strings.NewReader(`{"documents": []}`))
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetDocument_OK(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest("GET", "/api/v1/collections/docs/documents/doc-1", http.NoBody)
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["id"] != "doc-1" || resp["tenant_id"] != "tenant-a" {
		t.Errorf("unexpected document body: %v", resp)
	}
}

func TestGetDocument_NotFound_404(t *testing.T) {
	ts := newTestServer()
	ts.docRepo.missing = true

	req := httptest.NewRequest("GET", "/api/v1/collections/docs/documents/nope", http.NoBody)
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusNotFound)
	}
	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != codeDocumentNotFound {
		t.Errorf("error code: got %s, want %s", errResp.Code, codeDocumentNotFound)
	}
}

func TestGetDocument_StoreDown_503(t *testing.T) {
	ts := newTestServer()
	ts.docRepo.err = &db.Error{Op: db.OpHGetAll, Err: errors.New("connection refused")}

	req := httptest.NewRequest("GET", "/api/v1/collections/docs/documents/doc-1", http.NoBody)
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusServiceUnavailable, rr.Body.String())
	}
	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != codeStoreUnavailable {
		t.Errorf("error code: got %s, want %s", errResp.Code, codeStoreUnavailable)
	}
}

func TestGetDocument_DeadlineExceeded_504(t *testing.T) {
	ts := newTestServer()
	ts.docRepo.err = context.DeadlineExceeded

	req := httptest.NewRequest("GET", "/api/v1/collections/docs/documents/doc-1", http.NoBody)
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusGatewayTimeout, rr.Body.String())
	}
	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != codeTimeout {
		t.Errorf("error code: got %s, want %s", errResp.Code, codeTimeout)
	}
}

func TestDeleteDocument_NoContent(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest("DELETE", "/api/v1/collections/docs/documents/doc-1", http.NoBody)
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if len(ts.docRepo.deleted) != 1 || ts.docRepo.deleted[0] != "doc-1" {
		t.Errorf("document not deleted: %v", ts.docRepo.deleted)
	}
}

func TestGetJob_OK(t *testing.T) {
	ts := newTestServer()
	j := domjob.Job{ID: "job-1", Collection: "docs", TenantID: "tenant-a", Status: domjob.Succeeded}
	_ = ts.jobs.Save(context.Background(), &j)

	req := httptest.NewRequest("GET", "/api/v1/jobs/job-1", http.NoBody)
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	var got domjob.Job
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != domjob.Succeeded {
		t.Errorf("status: got %q, want %q", got.Status, domjob.Succeeded)
	}
}

func TestGetJob_Unknown_404(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest("GET", "/api/v1/jobs/nope", http.NoBody)
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetJob_WaitReturnsTerminalState(t *testing.T) {
	ts := newTestServer()
	j := domjob.Job{ID: "job-2", Collection: "docs", TenantID: "tenant-a", Status: domjob.Running}
	_ = ts.jobs.Save(context.Background(), &j)

	go func() {
		time.Sleep(300 * time.Millisecond)
		done := j
		done.Status = domjob.Succeeded
		_ = ts.jobs.Save(context.Background(), &done)
	}()

	req := httptest.NewRequest("GET", "/api/v1/jobs/job-2?wait_sec=2", http.NoBody)
	setIdentity(req)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	var got domjob.Job
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != domjob.Succeeded {
		t.Errorf("status after wait: got %q, want %q", got.Status, domjob.Succeeded)
	}
}

func TestHealthCheck_OK(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status: got %v, want ok", resp["status"])
	}
}
