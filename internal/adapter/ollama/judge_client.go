package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"retrieval-orchestrator/internal/domain"
)

// judgeFormat constrains the LLM to a strict JSON verdict.
var judgeFormat = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"sufficient":   map[string]any{"type": "boolean"},
		"coverage":     map[string]any{"type": "number"},
		"missing_info": map[string]any{"type": "string"},
	},
	"required": []string{"sufficient", "coverage"},
}

type judgeVerdict struct {
	Sufficient  bool    `json:"sufficient"`
	Coverage    float64 `json:"coverage"`
	MissingInfo string  `json:"missing_info"`
}

// JudgeClient implements domain.SufficiencyJudge with a structured LLM call.
type JudgeClient struct {
	generator *Generator
	logger    *slog.Logger
}

// NewJudgeClient constructs a JudgeClient over a Generator.
func NewJudgeClient(generator *Generator, logger *slog.Logger) *JudgeClient {
	return &JudgeClient{generator: generator, logger: logger}
}

// Assess asks the LLM whether the retrieved documents cover the query's
// information need. The verdict is produced once per retrieval round and
// never retried here.
func (c *JudgeClient) Assess(ctx context.Context, query string, topDocuments []domain.Document) (domain.SufficiencyAssessment, error) {
	start := time.Now()

	var sb strings.Builder
	sb.WriteString("You judge whether retrieved documents sufficiently answer a query.\n")
	sb.WriteString("Respond with JSON: {\"sufficient\": bool, \"coverage\": number in [0,1], \"missing_info\": string}.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nDocuments:\n")
	for i, doc := range topDocuments {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, truncateString(doc.Text, 500))
	}

	resp, err := c.generator.Generate(ctx, sb.String(), 200, judgeFormat)
	if err != nil {
		return domain.SufficiencyAssessment{}, fmt.Errorf("judge generation failed: %w", err)
	}

	var verdict judgeVerdict
	if err := json.Unmarshal([]byte(extractJSONObject(resp)), &verdict); err != nil {
		return domain.SufficiencyAssessment{}, fmt.Errorf("judge returned malformed verdict: %w", err)
	}
	if verdict.Coverage < 0 || verdict.Coverage > 1 {
		return domain.SufficiencyAssessment{}, fmt.Errorf("judge coverage out of range: %f", verdict.Coverage)
	}

	c.logger.Info("sufficiency_judged",
		slog.Bool("sufficient", verdict.Sufficient),
		slog.Float64("coverage", verdict.Coverage),
		slog.String("model", c.generator.Model),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return domain.SufficiencyAssessment{
		Sufficient:  verdict.Sufficient,
		Coverage:    verdict.Coverage,
		MissingInfo: verdict.MissingInfo,
	}, nil
}

// extractJSONObject tolerates models that pad the verdict with prose.
func extractJSONObject(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first >= 0 && last > first {
		return s[first : last+1]
	}
	return s
}

// truncateString cuts s to at most limit bytes on a rune boundary so
// multi-byte text (Japanese documents in particular) stays valid UTF-8.
func truncateString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
