package logger

import (
	"context"
	"log/slog"
	"os"
)

type ContextKey string

const (
	// Business context keys for retrieval observability.
	// These follow OpenTelemetry semantic conventions with a 'retrieval.' prefix.
	RetrievalIDKey ContextKey = "retrieval.id"
	SessionIDKey   ContextKey = "retrieval.session.id"
	StageKey       ContextKey = "retrieval.conversation.stage"
	PipelineKey    ContextKey = "retrieval.pipeline"
)

// ContextLogger provides context-aware structured logging
type ContextLogger struct {
	logger      *slog.Logger
	serviceName string
}

// NewContextLogger creates a new context-aware logger
func NewContextLogger(serviceName string) *ContextLogger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)

	return &ContextLogger{
		logger:      slog.New(handler),
		serviceName: serviceName,
	}
}

// NewContextLoggerFrom wraps an existing logger so components can keep their
// injected handler while gaining context extraction.
func NewContextLoggerFrom(base *slog.Logger, serviceName string) *ContextLogger {
	return &ContextLogger{
		logger:      base,
		serviceName: serviceName,
	}
}

// WithContext returns a logger with context values extracted and added as fields
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := cl.logger.With("service", cl.serviceName)

	var fields []any

	if retrievalID := ctx.Value(RetrievalIDKey); retrievalID != nil {
		fields = append(fields, string(RetrievalIDKey), retrievalID)
	}
	if sessionID := ctx.Value(SessionIDKey); sessionID != nil {
		fields = append(fields, string(SessionIDKey), sessionID)
	}
	if stage := ctx.Value(StageKey); stage != nil {
		fields = append(fields, string(StageKey), stage)
	}
	if pipeline := ctx.Value(PipelineKey); pipeline != nil {
		fields = append(fields, string(PipelineKey), pipeline)
	}

	if len(fields) > 0 {
		logger = logger.With(fields...)
	}

	return logger
}

// Context helper functions

// WithRetrievalID adds the retrieval ID to context for observability
func WithRetrievalID(ctx context.Context, retrievalID string) context.Context {
	return context.WithValue(ctx, RetrievalIDKey, retrievalID)
}

// WithSessionID adds the session ID to context for observability
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithStage adds the conversation stage to context for observability
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

// WithPipeline adds the pipeline name to context for observability
func WithPipeline(ctx context.Context, pipeline string) context.Context {
	return context.WithValue(ctx, PipelineKey, pipeline)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
