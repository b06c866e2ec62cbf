package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mrmushfiq/maas-platform/internal/gateway/upstream"
	"github.com/mrmushfiq/maas-platform/internal/shared/models"
)

type KeysHandler struct {
	litellm *upstream.LiteLLM
}

func NewKeysHandler(litellm *upstream.LiteLLM) *KeysHandler {
	return &KeysHandler{litellm: litellm}
}

// CreateKeyRequest is the body of POST /api/keys
type CreateKeyRequest struct {
	Name      string                 `json:"name"`
	Models    []string               `json:"models"`
	MaxBudget *float64               `json:"max_budget,omitempty"`
	Duration  *string                `json:"duration,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// UpdateKeyRequest is the body of PUT /api/keys/{token}
type UpdateKeyRequest struct {
	Name      *string  `json:"name,omitempty"`
	Models    []string `json:"models,omitempty"`
	MaxBudget *float64 `json:"max_budget,omitempty"`
}

// List handles GET /api/keys. Key material is always masked.
func (h *KeysHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.litellm.ListKeys(r.Context(), r.URL.Query())
	if err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}

	keys := make([]models.APIKey, 0, len(records))
	for _, rec := range records {
		keys = append(keys, toAPIKey(rec, ""))
	}
	respondWithJSON(w, http.StatusOK, keys)
}

// Create handles POST /api/keys. The reply carries the full key; this is
// the only time the dashboard sees it.
func (h *KeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if strings.TrimSpace(req.Name) == "" || len(req.Models) == 0 {
		respondWithError(w, http.StatusBadRequest, "Name and models are required")
		return
	}

	rec, err := h.litellm.GenerateKey(r.Context(), upstream.GenerateKeyRequest{
		KeyAlias:  req.Name,
		Models:    req.Models,
		MaxBudget: req.MaxBudget,
		Duration:  req.Duration,
		Metadata:  req.Metadata,
	})
	if err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}

	if rec.Token == "" {
		rec.Token = rec.Key
	}
	if rec.KeyAlias == nil {
		rec.KeyAlias = &req.Name
	}
	if len(rec.Models) == 0 {
		rec.Models = req.Models
	}
	respondWithJSON(w, http.StatusCreated, toAPIKey(*rec, rec.Key))
}

// Get handles GET /api/keys/{token}
func (h *KeysHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	secret, rec, err := h.litellm.KeyInfo(r.Context(), token)
	if err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}

	// The proxy echoes the lookup value back; only a different value is a secret.
	if secret == token || secret == rec.Token {
		secret = ""
	}
	respondWithJSON(w, http.StatusOK, toAPIKey(*rec, secret))
}

// Update handles PUT /api/keys/{token}
func (h *KeysHandler) Update(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req UpdateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Name == nil && req.Models == nil && req.MaxBudget == nil {
		respondWithError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	rec, err := h.litellm.UpdateKey(r.Context(), upstream.UpdateKeyRequest{
		Key:       token,
		KeyAlias:  req.Name,
		Models:    req.Models,
		MaxBudget: req.MaxBudget,
	})
	if err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toAPIKey(*rec, ""))
}

// Delete handles DELETE /api/keys/{token}
func (h *KeysHandler) Delete(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.litellm.DeleteKeys(r.Context(), token); err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"deleted": token,
	})
}

// toAPIKey maps a LiteLLM key record into the dashboard shape. secret is
// shown verbatim when set; otherwise only a masked display form is exposed.
func toAPIKey(rec upstream.KeyRecord, secret string) models.APIKey {
	key := models.APIKey{
		ID:         rec.Token,
		Name:       "Unnamed key",
		Key:        secret,
		Models:     rec.Models,
		CreatedAt:  rec.CreatedAt,
		LastUsed:   rec.LastActive,
		UsageCount: rec.Spend,
		MaxBudget:  rec.MaxBudget,
		Expires:    rec.Expires,
	}

	switch {
	case rec.KeyAlias != nil && *rec.KeyAlias != "":
		key.Name = *rec.KeyAlias
	case rec.KeyName != nil && *rec.KeyName != "":
		key.Name = displayKey(rec)
	}
	if key.LastUsed == nil {
		key.LastUsed = rec.UpdatedAt
	}
	if key.Models == nil {
		key.Models = []string{}
	}
	if key.Key == "" {
		key.Key = displayKey(rec)
	}
	return key
}

// displayKey returns the truncated form of a key, e.g. "sk-...Ab12".
func displayKey(rec upstream.KeyRecord) string {
	if rec.KeyName != nil && strings.Contains(*rec.KeyName, "...") {
		return *rec.KeyName
	}
	source := rec.Token
	if rec.KeyName != nil && *rec.KeyName != "" {
		source = *rec.KeyName
	}
	return maskKey(source)
}

func maskKey(k string) string {
	if len(k) <= 4 {
		return "sk-..."
	}
	return "sk-..." + k[len(k)-4:]
}
