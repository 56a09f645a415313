package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"arklicense/internal/infrastructure"
	"arklicense/internal/services"
)

// HealthHandler serves liveness and version endpoints.
type HealthHandler struct {
	service services.HealthService
	logger  *slog.Logger
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(service services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// VersionResponse identifies the running build.
type VersionResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Health(r.Context()))
}

// Version handles GET /version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, VersionResponse{
		Service: infrastructure.ServiceName,
		Version: infrastructure.ServiceVersion,
	})
}
