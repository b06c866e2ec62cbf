package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
)

// KeyRecord is a virtual key as LiteLLM stores it. Key holds the raw secret
// and is only populated by /key/generate.
type KeyRecord struct {
	Token      string   `json:"token"`
	Key        string   `json:"key,omitempty"`
	KeyAlias   *string  `json:"key_alias"`
	KeyName    *string  `json:"key_name"`
	Models     []string `json:"models"`
	Spend      float64  `json:"spend"`
	MaxBudget  *float64 `json:"max_budget"`
	Expires    *string  `json:"expires"`
	CreatedAt  *string  `json:"created_at"`
	UpdatedAt  *string  `json:"updated_at"`
	LastActive *string  `json:"last_active"`
}

// GenerateKeyRequest is the body of POST /key/generate
type GenerateKeyRequest struct {
	KeyAlias  string                 `json:"key_alias"`
	Models    []string               `json:"models"`
	MaxBudget *float64               `json:"max_budget,omitempty"`
	Duration  *string                `json:"duration,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// UpdateKeyRequest is the body of POST /key/update
type UpdateKeyRequest struct {
	Key       string   `json:"key"`
	KeyAlias  *string  `json:"key_alias,omitempty"`
	Models    []string `json:"models,omitempty"`
	MaxBudget *float64 `json:"max_budget,omitempty"`
}

// ModelPricingUpdate sets per-token costs on one model deployment
type ModelPricingUpdate struct {
	ModelID            string
	InputCostPerToken  *float64
	OutputCostPerToken *float64
}

// LiteLLM talks to the LiteLLM proxy admin API with the master key.
type LiteLLM struct {
	rest   restClient
	openai *openai.Client
}

// NewLiteLLM creates a LiteLLM client rooted at baseURL
func NewLiteLLM(baseURL, masterKey string, httpClient *http.Client) *LiteLLM {
	oaiCfg := openai.DefaultConfig(masterKey)
	oaiCfg.BaseURL = baseURL + "/v1"
	oaiCfg.HTTPClient = httpClient

	return &LiteLLM{
		rest: restClient{
			service:    "LiteLLM",
			baseURL:    baseURL,
			authHeader: "Bearer " + masterKey,
			http:       httpClient,
		},
		openai: openai.NewClientWithConfig(oaiCfg),
	}
}

// ListModels lists the models served by the gateway
func (c *LiteLLM) ListModels(ctx context.Context) ([]openai.Model, error) {
	list, err := c.openai.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("LiteLLM model list failed: %w", err)
	}
	return list.Models, nil
}

// ModelInfo returns the raw /model/info payload
func (c *LiteLLM) ModelInfo(ctx context.Context) ([]byte, error) {
	data, _, err := c.rest.raw(ctx, http.MethodGet, "/model/info", nil, nil)
	return data, err
}

// ModelGroupInfo returns the raw /model_group/info payload
func (c *LiteLLM) ModelGroupInfo(ctx context.Context) ([]byte, error) {
	data, _, err := c.rest.raw(ctx, http.MethodGet, "/model_group/info", nil, nil)
	return data, err
}

// PublicModelHub returns the raw /public/model_hub payload
func (c *LiteLLM) PublicModelHub(ctx context.Context) ([]byte, error) {
	data, _, err := c.rest.raw(ctx, http.MethodGet, "/public/model_hub", nil, nil)
	return data, err
}

// UpdateModelPricing updates the per-token costs of a deployment
func (c *LiteLLM) UpdateModelPricing(ctx context.Context, update ModelPricingUpdate) error {
	params := map[string]interface{}{}
	if update.InputCostPerToken != nil {
		params["input_cost_per_token"] = *update.InputCostPerToken
	}
	if update.OutputCostPerToken != nil {
		params["output_cost_per_token"] = *update.OutputCostPerToken
	}

	body := map[string]interface{}{
		"model_info":     map[string]interface{}{"id": update.ModelID},
		"litellm_params": params,
	}
	return c.rest.do(ctx, http.MethodPost, "/model/update", nil, body, nil)
}

// ListKeys lists virtual keys. Extra query parameters are forwarded verbatim.
func (c *LiteLLM) ListKeys(ctx context.Context, query url.Values) ([]KeyRecord, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("return_full_object", "true")

	data, _, err := c.rest.raw(ctx, http.MethodGet, "/key/list", q, nil)
	if err != nil {
		return nil, err
	}

	// Older proxies answer with bare token strings even when asked for objects.
	records := []KeyRecord{}
	var decodeErr error
	gjson.GetBytes(data, "keys").ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String {
			records = append(records, KeyRecord{Token: v.String()})
			return true
		}
		var rec KeyRecord
		if err := json.Unmarshal([]byte(v.Raw), &rec); err != nil {
			decodeErr = fmt.Errorf("failed to decode LiteLLM key: %w", err)
			return false
		}
		records = append(records, rec)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return records, nil
}

// GenerateKey issues a new virtual key
func (c *LiteLLM) GenerateKey(ctx context.Context, req GenerateKeyRequest) (*KeyRecord, error) {
	var rec KeyRecord
	if err := c.rest.do(ctx, http.MethodPost, "/key/generate", nil, req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// KeyInfo fetches a single key. The returned secret is whatever the proxy
// echoes back in the top-level "key" field, which may be the full key.
func (c *LiteLLM) KeyInfo(ctx context.Context, token string) (string, *KeyRecord, error) {
	var resp struct {
		Key  string    `json:"key"`
		Info KeyRecord `json:"info"`
	}
	q := url.Values{"key": []string{token}}
	if err := c.rest.do(ctx, http.MethodGet, "/key/info", q, nil, &resp); err != nil {
		return "", nil, err
	}
	if resp.Info.Token == "" {
		resp.Info.Token = token
	}
	return resp.Key, &resp.Info, nil
}

// UpdateKey changes the alias, models or budget of a key
func (c *LiteLLM) UpdateKey(ctx context.Context, req UpdateKeyRequest) (*KeyRecord, error) {
	var rec KeyRecord
	if err := c.rest.do(ctx, http.MethodPost, "/key/update", nil, req, &rec); err != nil {
		return nil, err
	}
	if rec.Token == "" {
		rec.Token = req.Key
	}
	// /key/update echoes the token back in "key"
	if rec.Key == req.Key {
		rec.Key = ""
	}
	return &rec, nil
}

// DeleteKeys revokes the given keys
func (c *LiteLLM) DeleteKeys(ctx context.Context, tokens ...string) error {
	body := map[string]interface{}{"keys": tokens}
	return c.rest.do(ctx, http.MethodPost, "/key/delete", nil, body, nil)
}

// SpendReport returns the raw global spend report for the forwarded query
func (c *LiteLLM) SpendReport(ctx context.Context, query url.Values) ([]byte, error) {
	data, _, err := c.rest.raw(ctx, http.MethodGet, "/global/spend/report", query, nil)
	return data, err
}

// SpendLogs returns the raw spend logs for the forwarded query
func (c *LiteLLM) SpendLogs(ctx context.Context, query url.Values) ([]byte, error) {
	data, _, err := c.rest.raw(ctx, http.MethodGet, "/spend/logs", query, nil)
	return data, err
}
