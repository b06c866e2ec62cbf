package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mrmushfiq/maas-platform/internal/gateway/upstream"
	"github.com/mrmushfiq/maas-platform/internal/shared/config"
	"github.com/mrmushfiq/maas-platform/internal/shared/models"
)

const hubNotConfigured = "JupyterHub not configured"

type NotebooksHandler struct {
	hub *upstream.JupyterHub // nil when no API token is configured
	cfg *config.Config
}

func NewNotebooksHandler(hub *upstream.JupyterHub, cfg *config.Config) *NotebooksHandler {
	return &NotebooksHandler{hub: hub, cfg: cfg}
}

// CreateNotebookRequest is the body of POST /api/notebooks
type CreateNotebookRequest struct {
	Username   string `json:"username"`
	ServerName string `json:"server_name,omitempty"`
	Profile    string `json:"profile,omitempty"`
}

// List handles GET /api/notebooks
func (h *NotebooksHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondWithJSON(w, http.StatusOK, []models.Notebook{})
		return
	}

	users, err := h.hub.ListUsers(r.Context())
	if err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.flatten(users))
}

// Create handles POST /api/notebooks
func (h *NotebooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateNotebookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		respondWithError(w, http.StatusBadRequest, "Username is required")
		return
	}
	if h.hub == nil {
		respondWithError(w, http.StatusServiceUnavailable, hubNotConfigured)
		return
	}

	if req.ServerName == "" {
		req.ServerName = "nb-" + uuid.NewString()[:8]
	}
	var options map[string]interface{}
	if req.Profile != "" {
		options = map[string]interface{}{"profile": req.Profile}
	}

	ctx := r.Context()
	if err := h.hub.EnsureUser(ctx, req.Username); err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}
	pending, err := h.hub.StartServer(ctx, req.Username, req.ServerName, options)
	if err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}

	nb := models.Notebook{
		ID:      req.Username + "/" + req.ServerName,
		User:    req.Username,
		Name:    req.ServerName,
		URL:     h.cfg.JupyterHubPublicURL + "/user/" + url.PathEscape(req.Username) + "/" + url.PathEscape(req.ServerName) + "/",
		Ready:   !pending,
		Status:  models.NotebookRunning,
		Profile: req.Profile,
	}
	if pending {
		spawn := "spawn"
		nb.Pending = &spawn
		nb.Status = models.NotebookPending
	}
	respondWithJSON(w, http.StatusCreated, nb)
}

// Delete handles DELETE /api/notebooks/{name}. name is the owning user;
// ?server= selects a named server instead of the default one.
func (h *NotebooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondWithError(w, http.StatusServiceUnavailable, hubNotConfigured)
		return
	}

	user := chi.URLParam(r, "name")
	server := r.URL.Query().Get("server")
	if err := h.hub.StopServer(r.Context(), user, server); err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Status handles GET /api/notebooks/status. It always answers 200.
func (h *NotebooksHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondWithJSON(w, http.StatusOK, models.NotebookStatus{Available: false, Message: hubNotConfigured})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.NotebookStatusTimeout)
	defer cancel()

	info, err := h.hub.Info(ctx)
	if err != nil {
		log.Printf("%s %s: JupyterHub unavailable: %v", r.Method, r.URL.Path, err)
		respondWithJSON(w, http.StatusOK, models.NotebookStatus{
			Available: false,
			Message:   "JupyterHub unavailable: " + upstream.Message(err),
		})
		return
	}

	respondWithJSON(w, http.StatusOK, models.NotebookStatus{
		Available: true,
		Version:   info.Version,
		URL:       h.cfg.JupyterHubPublicURL,
	})
}

// flatten turns users with server maps into a stable notebook list
func (h *NotebooksHandler) flatten(users []upstream.HubUser) []models.Notebook {
	notebooks := []models.Notebook{}
	for _, u := range users {
		names := make([]string, 0, len(u.Servers))
		for name := range u.Servers {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			srv := u.Servers[name]
			nb := models.Notebook{
				ID:           u.Name + "/" + name,
				User:         u.Name,
				Name:         name,
				URL:          h.cfg.JupyterHubPublicURL + srv.URL,
				Started:      srv.Started,
				LastActivity: srv.LastActivity,
				Ready:        srv.Ready,
				Pending:      srv.Pending,
				Status:       notebookStatus(srv),
			}
			if profile, ok := srv.UserOptions["profile"].(string); ok {
				nb.Profile = profile
			}
			notebooks = append(notebooks, nb)
		}
	}

	sort.SliceStable(notebooks, func(i, j int) bool {
		return notebooks[i].User < notebooks[j].User
	})
	return notebooks
}

func notebookStatus(srv upstream.HubServer) string {
	switch {
	case srv.Ready:
		return models.NotebookRunning
	case srv.Pending != nil && *srv.Pending != "":
		return models.NotebookPending
	default:
		return models.NotebookStopped
	}
}
