package handler

import (
	"net/http"

	"go.uber.org/zap"
)

type healthResponse struct {
	Status string `json:"status"`
}

// HealthHandler reports that the service accepts requests.
type HealthHandler struct {
	log *zap.Logger
}

func NewHealthHandler(log *zap.Logger) *HealthHandler {
	return &HealthHandler{log: log.Named("health")}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, healthResponse{Status: "healthy"})
}
