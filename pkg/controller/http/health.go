package http

import (
	"encoding/json"
	"net/http"

	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
)

// handleHealth handles health check requests
func handleHealth(w http.ResponseWriter, r *http.Request) {
	status := model.NewHealthStatus(types.AppName, types.Version)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode health response", "error", err)
	}
}
