// Package httpapi exposes the retrieval operations over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/infra/logger"
	"retrieval-orchestrator/internal/usecase"
)

// Handler serves the retrieval endpoints.
type Handler struct {
	retriever  *usecase.AgenticRetriever
	prefetcher *usecase.Prefetcher
	agenticCfg usecase.AgenticConfig
}

// NewHandler constructs a Handler. agenticCfg supplies defaults that
// individual requests may narrow.
func NewHandler(retriever *usecase.AgenticRetriever, prefetcher *usecase.Prefetcher, agenticCfg usecase.AgenticConfig) *Handler {
	return &Handler{
		retriever:  retriever,
		prefetcher: prefetcher,
		agenticCfg: agenticCfg,
	}
}

// Register wires the routes onto an echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/retrieve", h.Retrieve)
	e.POST("/v1/retrieve/agentic", h.RetrieveAgentic)
	e.POST("/v1/prefetch", h.Prefetch)
	e.GET("/v1/health", h.Health)
}

// RetrieveRequest is the body for POST /v1/retrieve.
type RetrieveRequest struct {
	Query     string `json:"query"`
	Stage     string `json:"stage,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// DocumentDTO is one returned document.
type DocumentDTO struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// RetrieveResponse is the body for POST /v1/retrieve responses.
type RetrieveResponse struct {
	Documents []DocumentDTO `json:"documents"`
	Partial   bool          `json:"partial"`
}

// Retrieve runs a single hybrid retrieve+rerank round.
func (h *Handler) Retrieve(c echo.Context) error {
	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query is required"})
	}

	// Serve the final utterance from the prefetch cache when it is still
	// warm; this is the fast path for voice turns.
	if docs, ok := h.prefetcher.CachedFor(req.Query); ok {
		return c.JSON(http.StatusOK, RetrieveResponse{Documents: toDTOs(docs), Partial: false})
	}

	stage := stageOf(req.Stage)
	ctx := observedContext(c.Request().Context(), "hybrid", stage, req.SessionID)
	docs, partial, err := h.retriever.Retrieve(ctx, req.Query, stage)
	if err != nil {
		if errors.Is(err, domain.ErrRetrieval) {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, RetrieveResponse{Documents: toDTOs(docs), Partial: partial})
}

// AgenticRequest is the body for POST /v1/retrieve/agentic.
type AgenticRequest struct {
	Query         string   `json:"query"`
	Stage         string   `json:"stage,omitempty"`
	SessionID     string   `json:"session_id,omitempty"`
	History       []string `json:"history,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty"`
}

// AgenticResponse is the body for POST /v1/retrieve/agentic responses.
type AgenticResponse struct {
	Documents  []DocumentDTO `json:"documents"`
	Iterations int           `json:"iterations"`
	Rewritten  bool          `json:"rewritten"`
	Reason     string        `json:"reason"`
	Partial    bool          `json:"partial"`
}

// RetrieveAgentic runs the iterative retrieval loop.
func (h *Handler) RetrieveAgentic(c echo.Context) error {
	var req AgenticRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query is required"})
	}

	cfg := h.agenticCfg
	if req.MaxIterations > 0 && req.MaxIterations < cfg.MaxIterations {
		cfg.MaxIterations = req.MaxIterations
	}

	stage := stageOf(req.Stage)
	conv := usecase.ConversationContext{
		Stage:   stage,
		History: req.History,
	}

	ctx := observedContext(c.Request().Context(), "agentic", stage, req.SessionID)
	result, err := h.retriever.RetrieveAgentic(ctx, req.Query, conv, cfg)
	if err != nil {
		if errors.Is(err, domain.ErrRetrieval) {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, AgenticResponse{
		Documents:  toDTOs(result.Documents),
		Iterations: result.Iterations,
		Rewritten:  result.Rewritten,
		Reason:     string(result.Reason),
		Partial:    result.Partial,
	})
}

// PrefetchRequest is the body for POST /v1/prefetch.
type PrefetchRequest struct {
	Partial    string  `json:"partial"`
	Confidence float64 `json:"confidence"`
	Stage      string  `json:"stage,omitempty"`
}

// Prefetch triggers speculative retrieval for a partial transcript.
func (h *Handler) Prefetch(c echo.Context) error {
	var req PrefetchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	h.prefetcher.PrefetchBackground(req.Partial, req.Confidence, stageOf(req.Stage))
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// observedContext tags the request context so pipeline, stage, and session
// show up on every log event the retrieval emits.
func observedContext(ctx context.Context, pipeline string, stage domain.ConversationStage, sessionID string) context.Context {
	ctx = logger.WithPipeline(ctx, pipeline)
	ctx = logger.WithStage(ctx, string(stage))
	if sessionID != "" {
		ctx = logger.WithSessionID(ctx, sessionID)
	}
	return ctx
}

func stageOf(s string) domain.ConversationStage {
	if s == "" {
		return domain.StagePresentation
	}
	return domain.ConversationStage(s)
}

func toDTOs(docs []domain.Document) []DocumentDTO {
	out := make([]DocumentDTO, 0, len(docs))
	for _, d := range docs {
		out = append(out, DocumentDTO{ID: d.ID, Text: d.Text, Score: d.Score})
	}
	return out
}
