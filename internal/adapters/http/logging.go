package http

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
)

const serviceName = "M42-Investment-Engine"

// Route parameters worth attaching to a failure log line.
var loggedURLParams = []string{"investment_id", "participant_id", "claim_id", "rank_id"}

func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}

// logHTTPOperationError records a rejected request with the caller identity
// and the aggregate ids it touched. Client errors log at warn.
func logHTTPOperationError(ctx context.Context, operation string, statusCode int, code, message string, err error) {
	fields := operationErrorFields(ctx, operation, statusCode, code, message, err)
	if statusCode >= 500 {
		httpLogger().ErrorContext(ctx, "http operation failed", fields...)
		return
	}
	httpLogger().WarnContext(ctx, "http operation failed", fields...)
}

func operationErrorFields(ctx context.Context, operation string, statusCode int, code, message string, err error) []any {
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"message", message,
		"request_id", requestIDFromContext(ctx),
	}
	if actor := actorFromContext(ctx); actor.SubjectID != "" {
		fields = append(fields, "actor_id", actor.SubjectID, "actor_role", actor.Role)
	}
	for _, key := range loggedURLParams {
		if value := chi.URLParamFromCtx(ctx, key); value != "" {
			fields = append(fields, key, value)
		}
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	return fields
}
