package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/mrmushfiq/maas-platform/internal/gateway/upstream"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// respondWithRaw writes an already encoded JSON document
func respondWithRaw(w http.ResponseWriter, code int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(raw)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

// respondWithUpstreamError mirrors the upstream status when there is one.
func respondWithUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	status := upstream.StatusCode(err)
	log.Printf("%s %s: upstream error (status %d): %v", r.Method, r.URL.Path, status, err)
	respondWithError(w, status, upstream.Message(err))
}
