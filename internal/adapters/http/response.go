package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, contracts.SuccessResponse{Status: "success", Data: data})
}

func writeError(ctx context.Context, w http.ResponseWriter, statusCode int, reason, code, message string, details map[string]any) {
	if reason == "" {
		reason = strings.ToLower(code)
	}
	writeJSON(w, statusCode, contracts.ErrorResponse{
		Status:    "error",
		Error:     reason,
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: requestIDFromContext(ctx),
	})
}

// writeMappedError logs and renders err using the domain error mapping.
func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	logHTTPOperationError(ctx, operation, status, code, msg, err)
	writeError(ctx, w, status, domain.ErrorReason(err), code, msg, domain.ErrorDetails(err))
}
