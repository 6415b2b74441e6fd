package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	projectIDKey contextKey = "project_id"
	stepKey      contextKey = "step"
	requestIDKey contextKey = "request_id"
)

// WithProject annotates context with the project identifier.
func WithProject(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, projectIDKey, id)
}

// ProjectFromContext returns the project identifier if present.
func ProjectFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(projectIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStep annotates context with the pipeline step name.
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stepKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithContext returns logger enriched with any identifiers present on ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if id, ok := ProjectFromContext(ctx); ok {
		logger = logger.With(String(FieldProjectID, id))
	}
	if step, ok := StepFromContext(ctx); ok {
		logger = logger.With(String(FieldStep, step))
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		logger = logger.With(String(FieldRequestID, id))
	}
	return logger
}
