// Package reranker provides an HTTP client for a cross-encoder scoring
// service (e.g. a bge-reranker deployment).
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ScoreRequest is the request payload for the rerank endpoint.
type ScoreRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
}

// ScoreResponseResult is a single result in the rerank response.
type ScoreResponseResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// ScoreResponse is the response from the rerank endpoint.
type ScoreResponse struct {
	Results []ScoreResponseResult `json:"results"`
	Model   string                `json:"model"`
}

// Client implements domain.CrossEncoderScorer via HTTP calls to a rerank
// service. Each call scores one query/document pair; the cascade decides how
// many pairs to pay for.
type Client struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewClient constructs a Client. If httpClient is nil, a default client with
// the given timeout is created.
func NewClient(baseURL, model string, timeout time.Duration, logger *slog.Logger, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  httpClient,
		logger:  logger,
	}
}

// Score returns the cross-encoder relevance of one query/document pair.
func (c *Client) Score(ctx context.Context, query, documentText string) (float32, error) {
	jsonData, err := json.Marshal(ScoreRequest{
		Query:      query,
		Candidates: []string{documentText},
		Model:      c.Model,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/rerank", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call reranker: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("reranker returned status %d: %s", resp.StatusCode, string(body))
	}

	var body ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(body.Results) == 0 {
		return 0, fmt.Errorf("reranker returned no results")
	}

	c.logger.Debug("cross_encoder_scored",
		slog.String("model", c.Model),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return body.Results[0].Score, nil
}

// ModelName returns the cross-encoder model identifier.
func (c *Client) ModelName() string {
	return c.Model
}
