package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/gophcache/pkg/api"
)

// Pinger is implemented by storages that can report their availability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	storage Pinger
	version string
}

// NewHealthHandler создает новый handler для health check.
// storage may be nil.
func NewHealthHandler(logger *slog.Logger, version string, storage Pinger) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		storage: storage,
		version: version,
	}
}

// Health обрабатывает GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	status := http.StatusOK

	if h.storage != nil {
		resp.Storage = "ok"
		if err := h.storage.Ping(r.Context()); err != nil {
			h.logger.Error("storage is unavailable", slog.Any("error", err))
			resp.Status = "degraded"
			resp.Storage = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	sendJSON(h.logger, w, resp, status)
}
