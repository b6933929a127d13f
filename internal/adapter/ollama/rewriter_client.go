package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RewriterClient implements domain.QueryRewriter with a single LLM call.
type RewriterClient struct {
	generator *Generator
	logger    *slog.Logger
}

// NewRewriterClient constructs a RewriterClient over a Generator.
func NewRewriterClient(generator *Generator, logger *slog.Logger) *RewriterClient {
	return &RewriterClient{generator: generator, logger: logger}
}

// Rewrite asks the LLM for a reformulated search query. The conversation
// context and the judge's missing-information note, when present, steer the
// reformulation toward what the previous round failed to retrieve.
func (c *RewriterClient) Rewrite(ctx context.Context, query, conversationContext, missingInfo string) (string, error) {
	start := time.Now()

	var sb strings.Builder
	sb.WriteString("You reformulate search queries for a document retrieval system.\n")
	sb.WriteString("The previous query retrieved insufficient evidence. Produce ONE improved search query.\n")
	sb.WriteString("Output ONLY the rewritten query text. No explanations, no quotes.\n\n")
	if conversationContext != "" {
		sb.WriteString("Conversation so far:\n")
		sb.WriteString(conversationContext)
		sb.WriteString("\n\n")
	}
	if missingInfo != "" {
		sb.WriteString("Missing information: ")
		sb.WriteString(missingInfo)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Previous query: ")
	sb.WriteString(query)

	resp, err := c.generator.Generate(ctx, sb.String(), 100, nil)
	if err != nil {
		return "", fmt.Errorf("rewrite generation failed: %w", err)
	}

	rewritten := firstNonEmptyLine(resp)
	c.logger.Info("query_rewrite_completed",
		slog.String("model", c.generator.Model),
		slog.String("rewritten", rewritten),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return rewritten, nil
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return strings.Trim(trimmed, `"`)
		}
	}
	return ""
}
