package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/mrmushfiq/maas-platform/internal/gateway/upstream"
	"github.com/mrmushfiq/maas-platform/internal/shared/models"
)

type ModelsHandler struct {
	litellm *upstream.LiteLLM
}

func NewModelsHandler(litellm *upstream.LiteLLM) *ModelsHandler {
	return &ModelsHandler{litellm: litellm}
}

// UpdatePricingRequest is the body of PUT /api/models/{id}/pricing
type UpdatePricingRequest struct {
	InputCostPerToken  *float64 `json:"input_cost_per_token"`
	OutputCostPerToken *float64 `json:"output_cost_per_token"`
}

// List handles GET /api/models
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.litellm.ListModels(r.Context())
	if err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}

	out := make([]models.Model, 0, len(list))
	for _, m := range list {
		out = append(out, models.Model{
			ID:      m.ID,
			Object:  m.Object,
			Created: m.CreatedAt,
			OwnedBy: m.OwnedBy,
		})
	}
	respondWithJSON(w, http.StatusOK, out)
}

// Info handles GET /api/model-info
func (h *ModelsHandler) Info(w http.ResponseWriter, r *http.Request) {
	data, err := h.litellm.ModelInfo(r.Context())
	if err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reshapeModelInfo(data))
}

// GroupInfo handles GET /api/model-group-info
func (h *ModelsHandler) GroupInfo(w http.ResponseWriter, r *http.Request) {
	data, err := h.litellm.ModelGroupInfo(r.Context())
	if err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}
	respondWithRaw(w, http.StatusOK, unwrapData(data))
}

// PublicHub handles GET /api/public-model-hub
func (h *ModelsHandler) PublicHub(w http.ResponseWriter, r *http.Request) {
	data, err := h.litellm.PublicModelHub(r.Context())
	if err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}
	respondWithRaw(w, http.StatusOK, unwrapData(data))
}

// UpdatePricing handles PUT /api/models/{id}/pricing
func (h *ModelsHandler) UpdatePricing(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "id")

	var req UpdatePricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if req.InputCostPerToken == nil && req.OutputCostPerToken == nil {
		respondWithError(w, http.StatusBadRequest, "input_cost_per_token or output_cost_per_token is required")
		return
	}
	if (req.InputCostPerToken != nil && *req.InputCostPerToken < 0) ||
		(req.OutputCostPerToken != nil && *req.OutputCostPerToken < 0) {
		respondWithError(w, http.StatusBadRequest, "Costs must not be negative")
		return
	}

	err := h.litellm.UpdateModelPricing(r.Context(), upstream.ModelPricingUpdate{
		ModelID:            modelID,
		InputCostPerToken:  req.InputCostPerToken,
		OutputCostPerToken: req.OutputCostPerToken,
	})
	if err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, models.ModelPricing{
		Success:            true,
		ModelID:            modelID,
		InputCostPerToken:  req.InputCostPerToken,
		OutputCostPerToken: req.OutputCostPerToken,
	})
}

// reshapeModelInfo flattens /model/info deployments. Costs and limits are
// read from model_info first, then from litellm_params.
func reshapeModelInfo(data []byte) []models.ModelInfo {
	out := []models.ModelInfo{}
	gjson.GetBytes(data, "data").ForEach(func(_, m gjson.Result) bool {
		info := m.Get("model_info")
		params := m.Get("litellm_params")

		item := models.ModelInfo{
			ID:                 info.Get("id").String(),
			ModelName:          m.Get("model_name").String(),
			ProviderModel:      params.Get("model").String(),
			Mode:               info.Get("mode").String(),
			InputCostPerToken:  firstNumber(info.Get("input_cost_per_token"), params.Get("input_cost_per_token")),
			OutputCostPerToken: firstNumber(info.Get("output_cost_per_token"), params.Get("output_cost_per_token")),
		}
		if n := firstNumber(info.Get("max_tokens"), params.Get("max_tokens")); n != nil {
			v := int64(*n)
			item.MaxTokens = &v
		}
		out = append(out, item)
		return true
	})
	return out
}

func firstNumber(candidates ...gjson.Result) *float64 {
	for _, c := range candidates {
		if c.Type == gjson.Number {
			v := c.Float()
			return &v
		}
	}
	return nil
}

// unwrapData returns the "data" array of a payload, or the payload itself.
func unwrapData(data []byte) []byte {
	if !gjson.ValidBytes(data) {
		return []byte("[]")
	}
	if v := gjson.GetBytes(data, "data"); v.IsArray() {
		return []byte(v.Raw)
	}
	return data
}
