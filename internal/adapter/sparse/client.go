// Package sparse provides an HTTP client for an external BM25/keyword index.
package sparse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"retrieval-orchestrator/internal/domain"
)

// Client implements domain.SparseSearchPort against a full-text search
// service exposing GET /v1/search.
type Client struct {
	BaseURL string
	Client  *http.Client
}

// NewClient constructs a Client. If httpClient is nil, a default client with
// the given timeout is created.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  httpClient,
	}
}

type searchResponse struct {
	Query string      `json:"query"`
	Hits  []searchHit `json:"hits"`
}

type searchHit struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

// Search runs a keyword query and returns candidates ranked 1-based in
// result order.
func (c *Client) Search(ctx context.Context, queryText string, topK int) ([]domain.Candidate, error) {
	u, err := url.Parse(fmt.Sprintf("%s/v1/search", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("q", queryText)
	q.Set("limit", strconv.Itoa(topK))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call sparse index: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sparse index returned status: %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(body.Hits))
	for i, hit := range body.Hits {
		if i >= topK {
			break
		}
		candidates = append(candidates, domain.Candidate{
			DocID:  hit.ID,
			Text:   hit.Content,
			Source: domain.SourceSparse,
			Rank:   i + 1,
			Score:  hit.Score,
		})
	}
	return candidates, nil
}
