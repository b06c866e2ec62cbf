package handlers

import (
	"log"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/mrmushfiq/maas-platform/internal/gateway/upstream"
)

type SpendHandler struct {
	litellm *upstream.LiteLLM
}

func NewSpendHandler(litellm *upstream.LiteLLM) *SpendHandler {
	return &SpendHandler{litellm: litellm}
}

// Report handles GET /api/spend/report. The query is forwarded verbatim.
func (h *SpendHandler) Report(w http.ResponseWriter, r *http.Request) {
	data, err := h.litellm.SpendReport(r.Context(), r.URL.Query())
	if err != nil {
		respondWithUpstreamError(w, r, err)
		return
	}
	if !gjson.ValidBytes(data) {
		respondWithRaw(w, http.StatusOK, []byte("[]"))
		return
	}
	respondWithRaw(w, http.StatusOK, data)
}

// Logs handles GET /api/spend/logs. Upstream failures degrade to 200 [].
func (h *SpendHandler) Logs(w http.ResponseWriter, r *http.Request) {
	data, err := h.litellm.SpendLogs(r.Context(), r.URL.Query())
	if err != nil {
		log.Printf("%s %s: spend logs unavailable: %v", r.Method, r.URL.Path, err)
		respondWithRaw(w, http.StatusOK, []byte("[]"))
		return
	}
	respondWithRaw(w, http.StatusOK, normalizeSpendLogs(data))
}

// normalizeSpendLogs accepts a bare array or an object wrapping one under
// "logs" or "data". Anything else becomes an empty array.
func normalizeSpendLogs(data []byte) []byte {
	if !gjson.ValidBytes(data) {
		return []byte("[]")
	}
	res := gjson.ParseBytes(data)
	if res.IsArray() {
		return []byte(res.Raw)
	}
	for _, field := range []string{"logs", "data"} {
		if v := res.Get(field); v.IsArray() {
			return []byte(v.Raw)
		}
	}
	return []byte("[]")
}
