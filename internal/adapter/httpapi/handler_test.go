package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrieval-orchestrator/internal/adapter/httpapi"
	"retrieval-orchestrator/internal/domain"
	"retrieval-orchestrator/internal/infra/embedcache"
	"retrieval-orchestrator/internal/usecase"
	"retrieval-orchestrator/internal/usecase/retrieval"
	"retrieval-orchestrator/internal/worker"
)

// Function-backed stubs keep the handler tests focused on HTTP semantics.

type stubEmbedder struct {
	embed func(ctx context.Context, text string) ([]float32, error)
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text)
}

func (s *stubEmbedder) ModelName() string { return "stub-embedder" }

type stubDense struct {
	search func(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error)
}

func (s *stubDense) Search(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error) {
	return s.search(ctx, vector, topK)
}

type stubSparse struct {
	search func(ctx context.Context, queryText string, topK int) ([]domain.Candidate, error)
}

func (s *stubSparse) Search(ctx context.Context, queryText string, topK int) ([]domain.Candidate, error) {
	return s.search(ctx, queryText, topK)
}

type stubScorer struct {
	score func(ctx context.Context, query, documentText string) (float32, error)
}

func (s *stubScorer) Score(ctx context.Context, query, documentText string) (float32, error) {
	return s.score(ctx, query, documentText)
}

func (s *stubScorer) ModelName() string { return "stub-scorer" }

type handlerFixture struct {
	dense  *stubDense
	sparse *stubSparse
}

func newHandlerFixture(t *testing.T) (*echo.Echo, *handlerFixture) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	fixture := &handlerFixture{
		dense: &stubDense{search: func(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error) {
			return []domain.Candidate{
				{DocID: "doc-1", Text: "refund policy overview", Source: domain.SourceDense, Rank: 1},
				{DocID: "doc-2", Text: "refund policy details", Source: domain.SourceDense, Rank: 2},
			}, nil
		}},
		sparse: &stubSparse{search: func(ctx context.Context, queryText string, topK int) ([]domain.Candidate, error) {
			return []domain.Candidate{}, nil
		}},
	}

	embedder := &stubEmbedder{embed: func(ctx context.Context, text string) ([]float32, error) {
		return []float32{0.1, 0.2}, nil
	}}
	pool := worker.NewComputePool(2, logger)
	cache, err := embedcache.New(16, embedder, pool, logger)
	require.NoError(t, err)

	hybridCfg := usecase.DefaultHybridConfig()
	hybridCfg.SearchTimeout = 500 * time.Millisecond

	hybrid := usecase.NewHybridRetriever(cache, fixture.dense, fixture.sparse, logger)
	scorer := &stubScorer{score: func(ctx context.Context, query, documentText string) (float32, error) {
		return 0.9, nil
	}}
	cascaded := retrieval.NewCascadedReranker(scorer, pool, logger)

	rerankCfg := retrieval.DefaultRerankConfig()
	rerankCfg.PrefilterThreshold = 0

	agentic := usecase.NewAgenticRetriever(
		hybrid, cascaded, nil, nil,
		usecase.NewBudgetManager(nil, nil),
		hybridCfg, rerankCfg, logger,
	)
	prefetcher := usecase.NewPrefetcher(agentic, usecase.DefaultPrefetchConfig(), logger)
	handler := httpapi.NewHandler(agentic, prefetcher, usecase.DefaultAgenticConfig())

	e := echo.New()
	handler.Register(e)
	return e, fixture
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Retrieve_Success(t *testing.T) {
	e, _ := newHandlerFixture(t)

	rec := doJSON(e, http.MethodPost, "/v1/retrieve", `{"query":"refund policy"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpapi.RetrieveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Partial)
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, "doc-1", resp.Documents[0].ID)
}

func TestHandler_Retrieve_MissingQuery(t *testing.T) {
	e, _ := newHandlerFixture(t)

	rec := doJSON(e, http.MethodPost, "/v1/retrieve", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Retrieve_BothSourcesDown(t *testing.T) {
	e, fixture := newHandlerFixture(t)
	fixture.dense.search = func(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error) {
		return nil, errors.New("down")
	}
	fixture.sparse.search = func(ctx context.Context, queryText string, topK int) ([]domain.Candidate, error) {
		return nil, errors.New("down")
	}

	rec := doJSON(e, http.MethodPost, "/v1/retrieve", `{"query":"refund policy"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_Retrieve_PartialOnSingleSourceFailure(t *testing.T) {
	e, fixture := newHandlerFixture(t)
	fixture.dense.search = func(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error) {
		return nil, errors.New("down")
	}
	fixture.sparse.search = func(ctx context.Context, queryText string, topK int) ([]domain.Candidate, error) {
		return []domain.Candidate{{DocID: "doc-9", Text: "refund policy text", Source: domain.SourceSparse, Rank: 1}}, nil
	}

	rec := doJSON(e, http.MethodPost, "/v1/retrieve", `{"query":"refund policy"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpapi.RetrieveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Partial)
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, "doc-9", resp.Documents[0].ID)
}

func TestHandler_RetrieveAgentic_Success(t *testing.T) {
	e, _ := newHandlerFixture(t)

	rec := doJSON(e, http.MethodPost, "/v1/retrieve/agentic", `{"query":"refund policy","stage":"discovery"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httpapi.AgenticResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// The stub scorer returns 0.9 for everything, so the heuristic calls the
	// first round sufficient.
	assert.Equal(t, 1, resp.Iterations)
	assert.Equal(t, "sufficient", resp.Reason)
	assert.NotEmpty(t, resp.Documents)
}

func TestHandler_RetrieveAgentic_MaxIterationsOnlyNarrows(t *testing.T) {
	e, _ := newHandlerFixture(t)

	// A request asking for more iterations than the server default must not
	// raise the cap; the call still succeeds.
	rec := doJSON(e, http.MethodPost, "/v1/retrieve/agentic", `{"query":"refund policy","max_iterations":50}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_RetrieveAgentic_MissingQuery(t *testing.T) {
	e, _ := newHandlerFixture(t)

	rec := doJSON(e, http.MethodPost, "/v1/retrieve/agentic", `{"stage":"discovery"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Prefetch_Accepted(t *testing.T) {
	e, _ := newHandlerFixture(t)

	rec := doJSON(e, http.MethodPost, "/v1/prefetch", `{"partial":"what is the refund","confidence":0.9}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandler_Health(t *testing.T) {
	e, _ := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
