package upstream

import (
	"context"
	"net/http"
	"net/url"
)

// HubUser is a JupyterHub user with its servers keyed by server name.
// The default server has the empty name.
type HubUser struct {
	Name         string               `json:"name"`
	Admin        bool                 `json:"admin"`
	LastActivity *string              `json:"last_activity"`
	Servers      map[string]HubServer `json:"servers"`
}

// HubServer is a single-user notebook server
type HubServer struct {
	Name         string                 `json:"name"`
	Ready        bool                   `json:"ready"`
	Pending      *string                `json:"pending"`
	URL          string                 `json:"url"`
	Started      *string                `json:"started"`
	LastActivity *string                `json:"last_activity"`
	UserOptions  map[string]interface{} `json:"user_options"`
}

// HubInfo is the unauthenticated API root reply
type HubInfo struct {
	Version string `json:"version"`
}

// JupyterHub talks to the JupyterHub REST API with a service token.
type JupyterHub struct {
	rest restClient
}

// NewJupyterHub creates a JupyterHub client rooted at apiURL (…/hub/api)
func NewJupyterHub(apiURL, token string, httpClient *http.Client) *JupyterHub {
	return &JupyterHub{
		rest: restClient{
			service:    "JupyterHub",
			baseURL:    apiURL,
			authHeader: "token " + token,
			http:       httpClient,
		},
	}
}

// Info returns the hub version
func (c *JupyterHub) Info(ctx context.Context) (*HubInfo, error) {
	var info HubInfo
	if err := c.rest.do(ctx, http.MethodGet, "/", nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListUsers lists users together with their servers
func (c *JupyterHub) ListUsers(ctx context.Context) ([]HubUser, error) {
	users := []HubUser{}
	if err := c.rest.do(ctx, http.MethodGet, "/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// EnsureUser creates the user unless it already exists
func (c *JupyterHub) EnsureUser(ctx context.Context, name string) error {
	err := c.rest.do(ctx, http.MethodPost, "/users/"+url.PathEscape(name), nil, nil, nil)
	if IsStatus(err, http.StatusConflict) {
		return nil
	}
	return err
}

// StartServer spawns a server for user. It reports whether the spawn is
// still pending (202) rather than already running (201).
func (c *JupyterHub) StartServer(ctx context.Context, user, server string, options map[string]interface{}) (bool, error) {
	var body interface{}
	if len(options) > 0 {
		body = options
	}
	_, status, err := c.rest.raw(ctx, http.MethodPost, serverPath(user, server), nil, body)
	if err != nil {
		return false, err
	}
	return status == http.StatusAccepted, nil
}

// StopServer stops a server of user
func (c *JupyterHub) StopServer(ctx context.Context, user, server string) error {
	return c.rest.do(ctx, http.MethodDelete, serverPath(user, server), nil, nil, nil)
}

func serverPath(user, server string) string {
	if server == "" {
		return "/users/" + url.PathEscape(user) + "/server"
	}
	return "/users/" + url.PathEscape(user) + "/servers/" + url.PathEscape(server)
}
