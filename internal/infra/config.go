package infra

import (
	"fmt"
	"path/filepath"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

// StackConfig is everything the platform program reads from stack config
type StackConfig struct {
	Environment string
	Catalog     *Catalog

	KeepImages int

	AppContext  string
	AppImageTag string

	ModelcarVersion     string
	PackagerComputeType string
	HFToken             pulumi.StringOutput // secret; zero when HasHFToken is false
	HasHFToken          bool

	Namespace           string
	LiteLLMChartVersion string
	APIReplicas         int

	JupyterHubNamespace    string
	JupyterHubChartVersion string
	ExposeJupyterHub       bool
	DefaultAIModel         string
}

// LoadStackConfig reads the stack configuration and the model catalog it
// points to. Relative catalog paths resolve against the program directory.
func LoadStackConfig(ctx *pulumi.Context) (*StackConfig, error) {
	cfg := config.New(ctx, "")

	sc := &StackConfig{
		Environment:            getOr(cfg, "environment", ctx.Stack()),
		KeepImages:             getIntOr(cfg, "keepImages", 10),
		AppContext:             getOr(cfg, "appContext", "../.."),
		AppImageTag:            getOr(cfg, "appImageTag", "latest"),
		ModelcarVersion:        getOr(cfg, "modelcarVersion", "latest"),
		PackagerComputeType:    getOr(cfg, "packagerComputeType", "BUILD_GENERAL1_LARGE"),
		Namespace:              getOr(cfg, "namespace", "maas"),
		LiteLLMChartVersion:    getOr(cfg, "litellmChartVersion", "0.1.636"),
		APIReplicas:            getIntOr(cfg, "apiReplicas", 2),
		JupyterHubNamespace:    getOr(cfg, "jupyterhubNamespace", "jupyterhub"),
		JupyterHubChartVersion: getOr(cfg, "jupyterhubChartVersion", "3.3.8"),
		ExposeJupyterHub:       cfg.GetBool("exposeJupyterHub"),
		DefaultAIModel:         cfg.Get("defaultAiModel"),
	}

	if token, err := cfg.TrySecret("hfToken"); err == nil {
		sc.HFToken = token
		sc.HasHFToken = true
	}

	catalogPath := getOr(cfg, "catalog", "catalog.yaml")
	if !filepath.IsAbs(catalogPath) {
		catalogPath = filepath.Join(ctx.RootDirectory(), catalogPath)
	}
	catalog, err := LoadCatalog(catalogPath)
	if err != nil {
		return nil, err
	}
	sc.Catalog = catalog

	if sc.DefaultAIModel == "" {
		sc.DefaultAIModel = defaultAIModel(catalog)
	}
	if sc.KeepImages < 1 {
		return nil, fmt.Errorf("keepImages must be at least 1, got %d", sc.KeepImages)
	}
	return sc, nil
}

// defaultAIModel picks the Jupyter AI model: the first catalog entry routed
// through the OpenAI-compatible LiteLLM endpoint.
func defaultAIModel(c *Catalog) string {
	if len(c.Models) == 0 {
		return "openai-chat:gpt-3.5-turbo"
	}
	return "openai-chat:" + c.Models[0].Name
}

func getOr(cfg *config.Config, key, fallback string) string {
	if v := cfg.Get(key); v != "" {
		return v
	}
	return fallback
}

func getIntOr(cfg *config.Config, key string, fallback int) int {
	if v := cfg.GetInt(key); v != 0 {
		return v
	}
	return fallback
}
