package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mrmushfiq/maas-platform/internal/gateway/upstream"
	"github.com/mrmushfiq/maas-platform/internal/shared/config"
	"github.com/mrmushfiq/maas-platform/internal/shared/redis"
)

// Dependencies are the upstream clients the routes forward to.
type Dependencies struct {
	LiteLLM    *upstream.LiteLLM
	JupyterHub *upstream.JupyterHub // nil when JUPYTERHUB_API_TOKEN is unset
	Redis      *redis.Client        // nil disables rate limiting
}

// NewRouter wires every /api route plus optional static dashboard serving
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	system := NewSystemHandler(cfg)
	modelsHandler := NewModelsHandler(deps.LiteLLM)
	keys := NewKeysHandler(deps.LiteLLM)
	spend := NewSpendHandler(deps.LiteLLM)
	notebooks := NewNotebooksHandler(deps.JupyterHub, cfg)
	middleware := NewMiddleware(deps.Redis, cfg.RateLimitPerMinute)

	r := chi.NewRouter()

	// Global middleware
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.CORSMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimitMiddleware)

		r.Get("/health", system.Health)
		r.Get("/config", system.Config)

		r.Get("/models", modelsHandler.List)
		r.Get("/model-info", modelsHandler.Info)
		r.Get("/model-group-info", modelsHandler.GroupInfo)
		r.Get("/public-model-hub", modelsHandler.PublicHub)
		r.Put("/models/{id}/pricing", modelsHandler.UpdatePricing)

		r.Get("/keys", keys.List)
		r.Post("/keys", keys.Create)
		r.Get("/keys/{token}", keys.Get)
		r.Put("/keys/{token}", keys.Update)
		r.Delete("/keys/{token}", keys.Delete)

		r.Get("/spend/report", spend.Report)
		r.Get("/spend/logs", spend.Logs)

		r.Get("/notebooks/status", notebooks.Status)
		r.Get("/notebooks", notebooks.List)
		r.Post("/notebooks", notebooks.Create)
		r.Delete("/notebooks/{name}", notebooks.Delete)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respondWithError(w, http.StatusNotFound, "Not found")
		})
	})

	if cfg.StaticDir != "" {
		r.NotFound(spaHandler(cfg.StaticDir))
	}

	return r
}

// spaHandler serves files from dir and falls back to index.html so that
// client-side routes resolve.
func spaHandler(dir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			respondWithError(w, http.StatusNotFound, "Not found")
			return
		}

		clean := filepath.Clean("/" + r.URL.Path)
		if info, err := os.Stat(filepath.Join(dir, clean)); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(clean, "/assets/") {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	}
}
