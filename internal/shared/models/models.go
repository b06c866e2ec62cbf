package models

// APIKey is the dashboard view of a LiteLLM virtual key
type APIKey struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Key        string   `json:"key"`
	Models     []string `json:"models"`
	CreatedAt  *string  `json:"created_at"`
	LastUsed   *string  `json:"last_used"`
	UsageCount float64  `json:"usage_count"`
	MaxBudget  *float64 `json:"max_budget,omitempty"`
	Expires    *string  `json:"expires,omitempty"`
}

// Model is an entry of the OpenAI-compatible model list
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelInfo is a deployment of a model group with its routing and pricing
type ModelInfo struct {
	ID                 string   `json:"id"`
	ModelName          string   `json:"model_name"`
	ProviderModel      string   `json:"provider_model"`
	Mode               string   `json:"mode,omitempty"`
	InputCostPerToken  *float64 `json:"input_cost_per_token"`
	OutputCostPerToken *float64 `json:"output_cost_per_token"`
	MaxTokens          *int64   `json:"max_tokens,omitempty"`
}

// ModelPricing is the reply of a pricing update
type ModelPricing struct {
	Success            bool     `json:"success"`
	ModelID            string   `json:"model_id"`
	InputCostPerToken  *float64 `json:"input_cost_per_token,omitempty"`
	OutputCostPerToken *float64 `json:"output_cost_per_token,omitempty"`
}

// Notebook status values
const (
	NotebookRunning = "running"
	NotebookPending = "pending"
	NotebookStopped = "stopped"
)

// Notebook is a single-user server owned by a JupyterHub user
type Notebook struct {
	ID           string  `json:"id"`
	User         string  `json:"user"`
	Name         string  `json:"name"`
	URL          string  `json:"url"`
	Started      *string `json:"started"`
	LastActivity *string `json:"last_activity"`
	Ready        bool    `json:"ready"`
	Pending      *string `json:"pending"`
	Status       string  `json:"status"`
	Profile      string  `json:"profile,omitempty"`
}

// NotebookStatus reports JupyterHub availability to the dashboard
type NotebookStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	URL       string `json:"url,omitempty"`
	Message   string `json:"message,omitempty"`
}

// PublicConfig is the client-side configuration handed to the dashboard
type PublicConfig struct {
	LiteLLMURL           string `json:"litellm_url"`
	JupyterHubURL        string `json:"jupyterhub_url"`
	JupyterHubConfigured bool   `json:"jupyterhub_configured"`
}
