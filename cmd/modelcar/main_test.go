package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrmushfiq/maas-platform/internal/modelcar"
)

func newHub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/models/acme/tiny/revision/main":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"sha": "deadbeef",
				"siblings": []map[string]string{
					{"rfilename": "config.json"},
					{"rfilename": "README.md"},
				},
			})
		case "/acme/tiny/resolve/main/config.json":
			io.WriteString(w, `{"model_type":"llama"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--no-color"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildCommandFlags(t *testing.T) {
	for _, f := range []string{"image", "base", "platform", "insecure", "label"} {
		assert.NotNil(t, buildCmd.Flags().Lookup(f), f)
	}
	for _, f := range []string{"model", "revision", "token", "output", "concurrency"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(f), f)
	}
	assert.Equal(t, "linux/amd64", buildCmd.Flags().Lookup("platform").DefValue)
}

func TestBuild_RequiresImage(t *testing.T) {
	_, err := run(t, "build", "--model", "acme/tiny", "--image", " ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--image")
}

func TestDownloadCommand(t *testing.T) {
	hub := newHub(t)
	dir := t.TempDir()

	out, err := run(t, "download", "--model", "acme/tiny", "--hub-url", hub.URL, "--token", "", "--output", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Using HF token: No")
	assert.Contains(t, out, "✓ config.json")
	assert.Contains(t, out, "Downloaded 1 files")
	assert.NotContains(t, out, "README.md")
}

func TestBuildCommand(t *testing.T) {
	hub := newHub(t)
	reg := httptest.NewServer(registry.New(registry.Logger(log.New(io.Discard, "", 0))))
	defer reg.Close()
	ref := strings.TrimPrefix(reg.URL, "http://") + "/modelcars:tiny-main"

	out, err := run(t, "build",
		"--model", "acme/tiny",
		"--hub-url", hub.URL,
		"--token", "hf_test",
		"--output", t.TempDir(),
		"--image", ref,
		"--base", "scratch",
		"--label", "team=ml",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Using HF token: Yes")
	assert.Contains(t, out, "✓ Pushed ")

	parsedRef, err := name.ParseReference(ref)
	require.NoError(t, err)
	img, err := remote.Image(parsedRef)
	require.NoError(t, err)
	cfg, err := img.ConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "acme/tiny", cfg.Config.Labels[modelcar.LabelModelID])
	assert.Equal(t, "deadbeef", cfg.Config.Labels[modelcar.LabelRevision])
	assert.Equal(t, "ml", cfg.Config.Labels["team"])
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.5 KiB", humanSize(1536))
	assert.Equal(t, "2.0 GiB", humanSize(2<<30))
}
