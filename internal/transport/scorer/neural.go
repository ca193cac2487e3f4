// Package scorer holds HTTP clients for the external neural-sparse scorer
// and the cross-encoder reranker.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fusedex/fusedex/internal/domain/search"
	"github.com/fusedex/fusedex/internal/retrieval"
)

// NeuralPort retrieves from an external neural-sparse scoring service.
type NeuralPort struct {
	baseURL string
	client  *http.Client
}

// NewNeuralPort creates the neural retrieval port.
func NewNeuralPort(baseURL string, timeout time.Duration) *NeuralPort {
	return &NeuralPort{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name identifies this source in fused results.
func (p *NeuralPort) Name() search.Source { return search.SourceNeural }

type neuralRequest struct {
	Collection     string `json:"collection"`
	Query          string `json:"query"`
	TopK           int    `json:"top_k"`
	TenantID       string `json:"tenant_id,omitempty"`
	MaxAccessLevel *int   `json:"max_access_level,omitempty"`
}

type neuralResponse struct {
	Results []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Retrieve asks the scoring service for ranked candidates. The service
// evaluates tenant and access pushdown on its own replica of the metadata.
func (p *NeuralPort) Retrieve(ctx context.Context, q retrieval.Query) (search.RankedList, error) {
	reqBody := neuralRequest{
		Collection: q.Collection,
		Query:      q.Text,
		TopK:       q.K,
		TenantID:   q.Tenant,
	}
	if q.MaxAccessLevel != retrieval.NoAccessCap {
		lvl := q.MaxAccessLevel
		reqBody.MaxAccessLevel = &lvl
	}

	var resp neuralResponse
	if err := postJSON(ctx, p.client, p.baseURL+"/rank", reqBody, &resp); err != nil {
		return search.RankedList{}, fmt.Errorf("neural scorer: %w", err)
	}

	candidates := make([]search.Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		candidates = append(candidates, search.Candidate{
			ID:     r.ID,
			Score:  r.Score,
			Source: search.SourceNeural,
		})
	}
	return search.RankedList{Source: search.SourceNeural, Candidates: candidates}, nil
}

// HealthCheck probes the scoring service.
func (p *NeuralPort) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("scorer unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scorer health status %d", resp.StatusCode)
	}
	return nil
}

// postJSON sends a JSON request and decodes a JSON response.
func postJSON(ctx context.Context, client *http.Client, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
