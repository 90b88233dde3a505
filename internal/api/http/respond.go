package http

import (
	"encoding/json"
	"net/http"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/logger"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// writeError maps a service error onto the HTTP taxonomy. State conflicts
// are expected under concurrency and logged at info, not as failures.
func writeError(w http.ResponseWriter, err error) {
	status := apperrors.StatusCode(err)
	code := apperrors.Code(err)

	switch {
	case apperrors.IsConflict(err):
		logger.Info("booking operation conflicted", "code", code, "error", err)
	case status >= 500:
		logger.Error("request failed", "code", code, "error", err)
	default:
		logger.Debug("request rejected", "code", code, "error", err)
	}

	msg := err.Error()
	if status >= 500 {
		// Do not leak infrastructure details to clients.
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}
