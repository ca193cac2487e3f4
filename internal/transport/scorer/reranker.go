package scorer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fusedex/fusedex/internal/domain/search"
	"github.com/fusedex/fusedex/internal/metrics"
)

// Reranker scores query/document pairs via an external cross-encoder service.
type Reranker struct {
	baseURL string
	client  *http.Client
}

// NewReranker creates the cross-encoder client.
func NewReranker(baseURL string, timeout time.Duration) *Reranker {
	return &Reranker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type rerankDoc struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type rerankRequest struct {
	Query     string      `json:"query"`
	Documents []rerankDoc `json:"documents"`
}

type rerankResponse struct {
	Scores []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"scores"`
}

// Rescore implements search.Reranker. Returns a relevance score per
// document ID.
func (r *Reranker) Rescore(ctx context.Context, query string, docs []search.RerankDoc) (map[string]float64, error) {
	wire := make([]rerankDoc, len(docs))
	for i, d := range docs {
		wire[i] = rerankDoc{ID: d.ID, Text: d.Text}
	}

	var resp rerankResponse
	err := postJSON(ctx, r.client, r.baseURL+"/score", rerankRequest{Query: query, Documents: wire}, &resp)
	if err != nil {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("reranker: %w", err)
	}
	metrics.RerankRequestsTotal.WithLabelValues("success").Inc()

	scores := make(map[string]float64, len(resp.Scores))
	for _, s := range resp.Scores {
		scores[s.ID] = s.Score
	}
	return scores, nil
}

// HealthCheck probes the reranker service.
func (r *Reranker) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("reranker unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reranker health status %d", resp.StatusCode)
	}
	return nil
}
