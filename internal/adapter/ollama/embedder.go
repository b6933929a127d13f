// Package ollama provides adapters backed by an Ollama-compatible inference
// service: the embedding provider and the LLM-based query rewriter and
// sufficiency judge.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Embedder implements domain.EmbeddingProvider against /api/embed.
type Embedder struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewEmbedder constructs an Embedder. If client is nil, a default one with a
// 30 second timeout is used.
func NewEmbedder(baseURL, model string, logger *slog.Logger, client *http.Client) *Embedder {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Embedder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  client,
		logger:  logger,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the dense vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()

	jsonData, err := json.Marshal(embedRequest{Model: e.Model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embed", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		e.logger.Error("embed_request_failed",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("failed to call embedder: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		e.logger.Error("embed_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("embedder returned status: %d", resp.StatusCode)
	}

	var body embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(body.Embeddings) == 0 || len(body.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("embedder returned no embedding")
	}

	e.logger.Debug("embed_completed",
		slog.String("model", e.Model),
		slog.Int("dimension", len(body.Embeddings[0])),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return body.Embeddings[0], nil
}

// ModelName returns the embedding model identifier.
func (e *Embedder) ModelName() string {
	return e.Model
}
