package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the platform description file: the models LiteLLM serves and
// the notebook profiles offered by JupyterHub.
type Catalog struct {
	Models   []CatalogModel    `yaml:"models"`
	Profiles []NotebookProfile `yaml:"notebook_profiles"`
}

// CatalogModel is one LiteLLM deployment. Models with Package set are also
// packaged into a modelcar image from HFModelID.
type CatalogModel struct {
	Name               string   `yaml:"name"`
	Model              string   `yaml:"model"`
	APIBase            string   `yaml:"api_base,omitempty"`
	APIKeyEnv          string   `yaml:"api_key_env,omitempty"`
	InputCostPerToken  *float64 `yaml:"input_cost_per_token,omitempty"`
	OutputCostPerToken *float64 `yaml:"output_cost_per_token,omitempty"`
	MaxTokens          *int     `yaml:"max_tokens,omitempty"`

	Package   bool   `yaml:"package,omitempty"`
	HFModelID string `yaml:"hf_model_id,omitempty"`
	Revision  string `yaml:"revision,omitempty"`
}

// NotebookProfile is a single-user server size offered in the spawner
type NotebookProfile struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	CPU         float64 `yaml:"cpu"`
	Memory      string  `yaml:"memory"`
	GPUs        int     `yaml:"gpus,omitempty"`
	Image       string  `yaml:"image,omitempty"`
	Default     bool    `yaml:"default,omitempty"`
}

// ImageTag is the modelcar tag for a packaged model
func (m CatalogModel) ImageTag() string {
	rev := m.Revision
	if rev == "" {
		rev = "main"
	}
	return strings.ToLower(m.Name) + "-" + rev
}

// DefaultProfiles is used when the catalog lists no notebook profiles
func DefaultProfiles() []NotebookProfile {
	return []NotebookProfile{
		{Name: "cpu-small", Description: "2 CPU, 4 GiB RAM", CPU: 2, Memory: "4G", Default: true},
		{Name: "gpu", Description: "4 CPU, 16 GiB RAM, 1 NVIDIA GPU", CPU: 4, Memory: "16G", GPUs: 1},
	}
}

// LoadCatalog reads and validates a catalog file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := map[string]bool{}
	for i, m := range c.Models {
		if m.Name == "" || m.Model == "" {
			return nil, fmt.Errorf("catalog model %d: name and model are required", i)
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("catalog model %q is listed twice", m.Name)
		}
		seen[m.Name] = true
		if m.Package && m.HFModelID == "" {
			return nil, fmt.Errorf("catalog model %q: hf_model_id is required when package is set", m.Name)
		}
	}
	for i, p := range c.Profiles {
		if p.Name == "" || p.CPU <= 0 || p.Memory == "" {
			return nil, fmt.Errorf("notebook profile %d: name, cpu and memory are required", i)
		}
	}

	if len(c.Profiles) == 0 {
		c.Profiles = DefaultProfiles()
	}
	return &c, nil
}

// Packaged returns the models that get a modelcar image
func (c *Catalog) Packaged() []CatalogModel {
	var out []CatalogModel
	for _, m := range c.Models {
		if m.Package {
			out = append(out, m)
		}
	}
	return out
}

// LiteLLMModelList renders the catalog as LiteLLM proxy_config.model_list
func (c *Catalog) LiteLLMModelList() []interface{} {
	list := make([]interface{}, 0, len(c.Models))
	for _, m := range c.Models {
		params := map[string]interface{}{"model": m.Model}
		if m.APIBase != "" {
			params["api_base"] = m.APIBase
		}
		if m.APIKeyEnv != "" {
			params["api_key"] = "os.environ/" + m.APIKeyEnv
		}
		if m.InputCostPerToken != nil {
			params["input_cost_per_token"] = *m.InputCostPerToken
		}
		if m.OutputCostPerToken != nil {
			params["output_cost_per_token"] = *m.OutputCostPerToken
		}

		entry := map[string]interface{}{
			"model_name":     m.Name,
			"litellm_params": params,
		}
		if m.MaxTokens != nil {
			entry["model_info"] = map[string]interface{}{"max_tokens": *m.MaxTokens}
		}
		list = append(list, entry)
	}
	return list
}
