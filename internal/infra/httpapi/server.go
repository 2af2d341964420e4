package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// respond writes a JSON body with the given status. Encoding failures are
// logged and otherwise dropped: headers are already out.
func respond(w http.ResponseWriter, logger *zap.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func respondError(w http.ResponseWriter, logger *zap.Logger, status int, msg string) {
	respond(w, logger, status, errorResponse{Success: false, Error: msg})
}
