package handlers

import (
	"net/http"
	"time"

	"github.com/mrmushfiq/maas-platform/internal/shared/config"
	"github.com/mrmushfiq/maas-platform/internal/shared/models"
)

type SystemHandler struct {
	cfg *config.Config
}

func NewSystemHandler(cfg *config.Config) *SystemHandler {
	return &SystemHandler{cfg: cfg}
}

// Health handles GET /api/health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Config handles GET /api/config
func (h *SystemHandler) Config(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, models.PublicConfig{
		LiteLLMURL:           h.cfg.LiteLLMPublicURL,
		JupyterHubURL:        h.cfg.JupyterHubPublicURL,
		JupyterHubConfigured: h.cfg.JupyterHubConfigured(),
	})
}
