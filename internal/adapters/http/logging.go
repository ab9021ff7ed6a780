package http

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
)

const serviceName = "M62-Experiment-Earnings-Service"

func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}

// logHTTPOperationError records a failed operation with the caller and the
// matched route. Business rejections (409, 422) log at info.
func logHTTPOperationError(ctx context.Context, operation string, statusCode int, code, message string, err error) {
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"message", message,
		"request_id", requestIDFromContext(ctx),
	}
	if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
		fields = append(fields, "route", rctx.RoutePattern())
	}
	if actor := actorFromContext(ctx); actor.SubjectID != "" {
		fields = append(fields, "subject_id", actor.SubjectID, "role", actor.Role)
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	switch {
	case statusCode >= 500:
		httpLogger().ErrorContext(ctx, "http operation failed", fields...)
	case statusCode == 409 || statusCode == 422:
		httpLogger().InfoContext(ctx, "http operation rejected", fields...)
	default:
		httpLogger().WarnContext(ctx, "http operation failed", fields...)
	}
}
