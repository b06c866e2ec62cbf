package modelcar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultHubURL is the public Hugging Face Hub
const DefaultHubURL = "https://huggingface.co"

// HubError is a non-2xx reply from the Hub
type HubError struct {
	StatusCode int
	Message    string
}

func (e *HubError) Error() string {
	msg := fmt.Sprintf("hugging face hub returned %d: %s", e.StatusCode, e.Message)
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		msg += " (gated or private models need HF_TOKEN)"
	}
	return msg
}

// HubClient reads model repositories from the Hugging Face Hub
type HubClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHubClient creates a Hub client. A blank token means anonymous access.
func NewHubClient(baseURL, token string, httpClient *http.Client) *HubClient {
	if baseURL == "" {
		baseURL = DefaultHubURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HubClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    httpClient,
	}
}

// Authenticated reports whether requests carry a token
func (c *HubClient) Authenticated() bool {
	return c.token != ""
}

// RepoInfo is the subset of the model info reply modelcar needs
type RepoInfo struct {
	ID       string    `json:"id"`
	SHA      string    `json:"sha"`
	Siblings []Sibling `json:"siblings"`
}

type Sibling struct {
	RFilename string `json:"rfilename"`
}

// ModelInfo lists the files of a model at revision
func (c *HubClient) ModelInfo(ctx context.Context, modelID, revision string) (*RepoInfo, error) {
	endpoint := fmt.Sprintf("%s/api/models/%s/revision/%s", c.baseURL, escapePath(modelID), url.PathEscape(revision))

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var info RepoInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode model info: %w", err)
	}
	return &info, nil
}

// Download streams one repository file into w and returns the bytes written
func (c *HubClient) Download(ctx context.Context, modelID, revision, file string, w io.Writer) (int64, error) {
	endpoint := fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL, escapePath(modelID), url.PathEscape(revision), escapePath(file))

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to download %s: %w", file, err)
	}
	return n, nil
}

func (c *HubClient) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hugging face hub request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &HubError{StatusCode: resp.StatusCode, Message: msg}
	}
	return resp, nil
}

// escapePath escapes each segment of a slash separated path
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
