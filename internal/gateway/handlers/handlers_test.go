package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrmushfiq/maas-platform/internal/gateway/upstream"
	"github.com/mrmushfiq/maas-platform/internal/shared/config"
)

type testEnv struct {
	cfg    *config.Config
	router http.Handler
}

// newTestEnv starts fake upstreams for the given handlers. A nil hub handler
// leaves JupyterHub unconfigured.
func newTestEnv(t *testing.T, litellm http.Handler, hub http.Handler) *testEnv {
	t.Helper()

	if litellm == nil {
		litellm = http.NotFoundHandler()
	}
	litellmSrv := httptest.NewServer(litellm)
	t.Cleanup(litellmSrv.Close)

	cfg := &config.Config{
		Port:                  "3001",
		LiteLLMAPIBase:        litellmSrv.URL,
		LiteLLMPublicURL:      "https://llm.example.com",
		LiteLLMMasterKey:      "sk-master",
		JupyterHubPublicURL:   "https://hub.example.com",
		NotebookStatusTimeout: 5 * time.Second,
	}
	deps := Dependencies{
		LiteLLM: upstream.NewLiteLLM(litellmSrv.URL, cfg.LiteLLMMasterKey, litellmSrv.Client()),
	}

	if hub != nil {
		hubSrv := httptest.NewServer(hub)
		t.Cleanup(hubSrv.Close)
		cfg.JupyterHubAPIURL = hubSrv.URL + "/hub/api"
		cfg.JupyterHubAPIToken = "hub-token"
		deps.JupyterHub = upstream.NewJupyterHub(cfg.JupyterHubAPIURL, cfg.JupyterHubAPIToken, hubSrv.Client())
	}

	return &testEnv{cfg: cfg, router: NewRouter(cfg, deps)}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestSystem_HealthAndConfig(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	_, err := time.Parse(time.RFC3339, health["timestamp"])
	assert.NoError(t, err)

	w = env.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"litellm_url":"https://llm.example.com","jupyterhub_url":"https://hub.example.com","jupyterhub_configured":false}`, w.Body.String())
}

func TestUnknownAPIRoute(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodOptions, "/api/keys", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestUpstreamUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	cfg := &config.Config{LiteLLMAPIBase: dead.URL}
	router := NewRouter(cfg, Dependencies{LiteLLM: upstream.NewLiteLLM(dead.URL, "k", http.DefaultClient)})

	req := httptest.NewRequest(http.MethodGet, "/api/model-info", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestStaticDashboard(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>dashboard</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	cfg := &config.Config{StaticDir: dir}
	router := NewRouter(cfg, Dependencies{LiteLLM: upstream.NewLiteLLM("http://127.0.0.1:1", "", http.DefaultClient)})

	tests := []struct {
		path string
		want string
		code int
	}{
		{path: "/app.js", want: "console.log(1)", code: http.StatusOK},
		{path: "/keys/abc", want: "dashboard", code: http.StatusOK},
		{path: "/api/missing", want: `"error"`, code: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestUpstreamRejectionIsPropagated(t *testing.T) {
	reject := jsonReply(http.StatusForbidden, `{"error":{"message":"not allowed"}}`)
	env := newTestEnv(t, reject, reject)

	tests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/api/models", nil},
		{http.MethodGet, "/api/model-info", nil},
		{http.MethodGet, "/api/model-group-info", nil},
		{http.MethodGet, "/api/public-model-hub", nil},
		{http.MethodPut, "/api/models/llama/pricing", map[string]float64{"input_cost_per_token": 0.1}},
		{http.MethodGet, "/api/keys", nil},
		{http.MethodPost, "/api/keys", map[string]interface{}{"name": "ci", "models": []string{"llama"}}},
		{http.MethodGet, "/api/keys/tok-1", nil},
		{http.MethodPut, "/api/keys/tok-1", map[string]string{"name": "renamed"}},
		{http.MethodDelete, "/api/keys/tok-1", nil},
		{http.MethodGet, "/api/spend/report", nil},
		{http.MethodGet, "/api/notebooks", nil},
		{http.MethodPost, "/api/notebooks", map[string]string{"username": "alice"}},
		{http.MethodDelete, "/api/notebooks/alice", nil},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.JSONEq(t, `{"error":"not allowed"}`, w.Body.String())
		})
	}

	t.Run("degraded endpoints still answer 200", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/spend/logs", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())

		w = env.do(t, http.MethodGet, "/api/notebooks/status", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"available":false`)
	})
}
