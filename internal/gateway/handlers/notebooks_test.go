package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrmushfiq/maas-platform/internal/shared/models"
)

func TestNotebooks_Unconfigured(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/api/notebooks/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"available":false,"message":"JupyterHub not configured"}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/notebooks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/notebooks", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"JupyterHub not configured"}`, w.Body.String())

	w = env.do(t, http.MethodDelete, "/api/notebooks/alice", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNotebooks_CreateRequiresUsername(t *testing.T) {
	for _, hub := range []http.Handler{nil, http.NotFoundHandler()} {
		env := newTestEnv(t, nil, hub)

		w := env.do(t, http.MethodPost, "/api/notebooks", map[string]string{"server_name": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Username is required"}`, w.Body.String())
	}
}

func TestNotebooks_Status(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		env := newTestEnv(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/hub/api/", r.URL.Path)
			jsonReply(http.StatusOK, `{"version":"4.1.5"}`)(w, r)
		}))

		w := env.do(t, http.MethodGet, "/api/notebooks/status", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"available":true,"version":"4.1.5","url":"https://hub.example.com"}`, w.Body.String())
	})

	t.Run("upstream error", func(t *testing.T) {
		env := newTestEnv(t, nil, jsonReply(http.StatusBadGateway, `{"message":"proxy down"}`))

		w := env.do(t, http.MethodGet, "/api/notebooks/status", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var status models.NotebookStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.False(t, status.Available)
		assert.Equal(t, "JupyterHub unavailable: proxy down", status.Message)
	})

	t.Run("timeout", func(t *testing.T) {
		done := make(chan struct{})
		env := newTestEnv(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-done:
			case <-r.Context().Done():
			}
		}))
		defer close(done)
		env.cfg.NotebookStatusTimeout = 50 * time.Millisecond

		w := env.do(t, http.MethodGet, "/api/notebooks/status", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var status models.NotebookStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.False(t, status.Available)
		assert.True(t, strings.HasPrefix(status.Message, "JupyterHub unavailable: "))
	})
}

func TestNotebooks_List(t *testing.T) {
	env := newTestEnv(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/hub/api/users", r.URL.Path)
		require.Equal(t, "token hub-token", r.Header.Get("Authorization"))
		jsonReply(http.StatusOK, `[
			{"name":"bob","servers":{
				"gpu":{"name":"gpu","ready":false,"pending":"spawn","url":"/user/bob/gpu/","user_options":{"profile":"gpu"}},
				"":{"name":"","ready":true,"pending":null,"url":"/user/bob/","started":"2024-05-01T00:00:00Z"}
			}},
			{"name":"alice","servers":{
				"":{"name":"","ready":false,"pending":null,"url":"/user/alice/"}
			}},
			{"name":"carol","servers":{}}
		]`)(w, r)
	}))

	w := env.do(t, http.MethodGet, "/api/notebooks", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var notebooks []models.Notebook
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notebooks))
	require.Len(t, notebooks, 3)

	assert.Equal(t, "alice/", notebooks[0].ID, "the default server has an empty server name")
	assert.Equal(t, models.NotebookStopped, notebooks[0].Status)

	assert.Equal(t, "bob/", notebooks[1].ID)
	assert.Equal(t, "https://hub.example.com/user/bob/", notebooks[1].URL)
	assert.Equal(t, models.NotebookRunning, notebooks[1].Status)
	require.NotNil(t, notebooks[1].Started)

	assert.Equal(t, "bob/gpu", notebooks[2].ID)
	assert.Equal(t, "gpu", notebooks[2].Profile)
	assert.Equal(t, models.NotebookPending, notebooks[2].Status)
	require.NotNil(t, notebooks[2].Pending)
	assert.Equal(t, "spawn", *notebooks[2].Pending)
}

func TestNotebooks_ListPropagatesErrors(t *testing.T) {
	env := newTestEnv(t, nil, jsonReply(http.StatusForbidden, `{"status":403,"message":"Action is not authorized"}`))

	w := env.do(t, http.MethodGet, "/api/notebooks", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Action is not authorized"}`, w.Body.String())
}

func TestNotebooks_Create(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
		opts  map[string]interface{}
	)
	env := newTestEnv(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.Path)

		switch {
		case r.URL.Path == "/hub/api/users/alice":
			jsonReply(http.StatusConflict, `{"status":409,"message":"User alice already exists"}`)(w, r)
		case strings.HasPrefix(r.URL.Path, "/hub/api/users/alice/servers/"):
			opts = nil
			json.NewDecoder(r.Body).Decode(&opts)
			w.WriteHeader(http.StatusAccepted)
		default:
			http.NotFound(w, r)
		}
	}))

	w := env.do(t, http.MethodPost, "/api/notebooks", map[string]string{
		"username":    "alice",
		"server_name": "analysis",
		"profile":     "gpu",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var nb models.Notebook
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nb))
	assert.Equal(t, "alice/analysis", nb.ID)
	assert.Equal(t, "https://hub.example.com/user/alice/analysis/", nb.URL)
	assert.Equal(t, models.NotebookPending, nb.Status)
	assert.False(t, nb.Ready)

	mu.Lock()
	assert.Equal(t, []string{"POST /hub/api/users/alice", "POST /hub/api/users/alice/servers/analysis"}, calls)
	assert.Equal(t, "gpu", opts["profile"])
	calls = nil
	mu.Unlock()

	w = env.do(t, http.MethodPost, "/api/notebooks", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nb))
	assert.True(t, strings.HasPrefix(nb.Name, "nb-"))
	assert.Len(t, nb.Name, len("nb-")+8)
}

func TestNotebooks_Delete(t *testing.T) {
	var got []string
	env := newTestEnv(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	w := env.do(t, http.MethodDelete, "/api/notebooks/alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = env.do(t, http.MethodDelete, "/api/notebooks/alice?server=analysis", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{
		"DELETE /hub/api/users/alice/server",
		"DELETE /hub/api/users/alice/servers/analysis",
	}, got)
}
