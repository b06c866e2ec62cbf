package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError_MessageExtraction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "openai style", body: `{"error":{"message":"Invalid proxy server token","type":"auth_error"}}`, want: "Invalid proxy server token"},
		{name: "fastapi detail object", body: `{"detail":{"error":"key not found"}}`, want: "key not found"},
		{name: "fastapi detail string", body: `{"detail":"Not authenticated"}`, want: "Not authenticated"},
		{name: "jupyterhub", body: `{"status":404,"message":"No such user: bob"}`, want: "No such user: bob"},
		{name: "plain error string", body: `{"error":"boom"}`, want: "boom"},
		{name: "not json", body: `<html>bad gateway</html>`, want: "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newError("LiteLLM", http.StatusBadGateway, []byte(tt.body))
			assert.Equal(t, tt.want, err.Message)
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "upstream error", err: &Error{Service: "LiteLLM", StatusCode: 404}, want: 404},
		{name: "wrapped upstream error", err: fmt.Errorf("ctx: %w", &Error{StatusCode: 401}), want: 401},
		{name: "openai api error", err: &openai.APIError{HTTPStatusCode: 403, Message: "forbidden"}, want: 403},
		{name: "openai request error", err: &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad")}, want: 502},
		{name: "network error", err: errors.New("dial tcp: connection refused"), want: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestLiteLLM_ListKeys(t *testing.T) {
	var gotAuth string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/key/list", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"keys":[{"token":"abc","key_alias":"team-a","models":["llama"],"spend":1.5},"def"],"total_count":2}`))
	}))
	defer srv.Close()

	client := NewLiteLLM(srv.URL, "sk-master", srv.Client())
	keys, err := client.ListKeys(context.Background(), url.Values{"user_id": []string{"u1"}})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-master", gotAuth)
	assert.Equal(t, "true", gotQuery.Get("return_full_object"))
	assert.Equal(t, "u1", gotQuery.Get("user_id"))

	require.Len(t, keys, 2)
	assert.Equal(t, "abc", keys[0].Token)
	assert.Equal(t, "team-a", *keys[0].KeyAlias)
	assert.Equal(t, 1.5, keys[0].Spend)
	assert.Equal(t, "def", keys[1].Token)
}

func TestLiteLLM_GenerateKey(t *testing.T) {
	var got GenerateKeyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/key/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"key":"sk-full-secret","token":"hashed","key_alias":"ci","models":["gpt"]}`))
	}))
	defer srv.Close()

	client := NewLiteLLM(srv.URL, "sk-master", srv.Client())
	rec, err := client.GenerateKey(context.Background(), GenerateKeyRequest{KeyAlias: "ci", Models: []string{"gpt"}})
	require.NoError(t, err)

	assert.Equal(t, "ci", got.KeyAlias)
	assert.Equal(t, []string{"gpt"}, got.Models)
	assert.Equal(t, "sk-full-secret", rec.Key)
	assert.Equal(t, "hashed", rec.Token)
}

func TestLiteLLM_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"object":"list","data":[{"id":"llama-3","object":"model","created":1700000000,"owned_by":"openai"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewLiteLLM(srv.URL, "sk-master", srv.Client())
	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "llama-3", models[0].ID)
	assert.Equal(t, int64(1700000000), models[0].CreatedAt)
}

func TestLiteLLM_ErrorPropagation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Authentication Error"}}`))
	}))
	defer srv.Close()

	client := NewLiteLLM(srv.URL, "wrong", srv.Client())

	_, err := client.SpendReport(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, "Authentication Error", Message(err))

	_, err = client.ListModels(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
}

func TestJupyterHub_EnsureUserToleratesConflict(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/hub/api/users/alice", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"status":409,"message":"User alice already exists"}`))
	}))
	defer srv.Close()

	client := NewJupyterHub(srv.URL+"/hub/api", "hub-token", srv.Client())
	require.NoError(t, client.EnsureUser(context.Background(), "alice"))
	assert.Equal(t, "token hub-token", gotAuth)
}

func TestJupyterHub_StartServer(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewJupyterHub(srv.URL+"/hub/api", "hub-token", srv.Client())
	pending, err := client.StartServer(context.Background(), "alice", "gpu box", map[string]interface{}{"profile": "gpu"})
	require.NoError(t, err)

	assert.True(t, pending)
	assert.Equal(t, "/hub/api/users/alice/servers/gpu box", gotPath)
	assert.Equal(t, "gpu", gotBody["profile"])
}
