package infra

import (
	"fmt"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const project = "maas"

// Run declares the whole platform: registries, model packagers, the API
// image, JupyterHub and the MaaS namespace, then exports their endpoints.
func Run(ctx *pulumi.Context, cfg *StackConfig) error {
	naming := NewResourceNaming(cfg.Environment, project)
	tags := naming.Tags()

	models, err := NewRegistry(ctx, naming.Name("modelcars"), &RegistryArgs{
		Name:        naming.Name("modelcars"),
		KeepImages:  cfg.KeepImages,
		ForceDelete: true,
		Tags:        tags,
	})
	if err != nil {
		return fmt.Errorf("failed to declare model registry: %w", err)
	}

	apiRegistry, err := NewRegistry(ctx, naming.Name("api"), &RegistryArgs{
		Name:        naming.Name("api"),
		KeepImages:  cfg.KeepImages,
		ForceDelete: true,
		Tags:        tags,
	})
	if err != nil {
		return fmt.Errorf("failed to declare API registry: %w", err)
	}

	projects := pulumi.StringArray{}
	for _, m := range cfg.Catalog.Packaged() {
		packager, err := NewModelPackager(ctx, naming.Name("pack-"+m.Name), &ModelPackagerArgs{
			Registry:        models,
			Model:           m,
			ComputeType:     cfg.PackagerComputeType,
			ModelcarVersion: cfg.ModelcarVersion,
			HFToken:         cfg.HFToken,
			HasHFToken:      cfg.HasHFToken,
			Tags:            tags,
		})
		if err != nil {
			return fmt.Errorf("failed to declare packager for %s: %w", m.Name, err)
		}
		projects = append(projects, packager.ProjectName)
	}

	image, err := NewAppImage(ctx, naming.Name("api-image"), &AppImageArgs{
		Registry: apiRegistry,
		Context:  cfg.AppContext,
		Tag:      cfg.AppImageTag,
	})
	if err != nil {
		return fmt.Errorf("failed to declare API image: %w", err)
	}

	litellmURL := fmt.Sprintf("http://%s.%s.svc.cluster.local:%d", litellmName, cfg.Namespace, litellmPort)
	hub, err := NewJupyterHub(ctx, naming.Name("jupyterhub"), &JupyterHubArgs{
		Namespace:      cfg.JupyterHubNamespace,
		ChartVersion:   cfg.JupyterHubChartVersion,
		Profiles:       cfg.Catalog.Profiles,
		Expose:         cfg.ExposeJupyterHub,
		LiteLLMURL:     pulumi.String(litellmURL + "/v1"),
		DefaultAIModel: cfg.DefaultAIModel,
	})
	if err != nil {
		return fmt.Errorf("failed to declare JupyterHub: %w", err)
	}

	platform, err := NewMaaSPlatform(ctx, naming.Name("platform"), &MaaSPlatformArgs{
		Namespace:           cfg.Namespace,
		LiteLLMChartVersion: cfg.LiteLLMChartVersion,
		Catalog:             cfg.Catalog,
		Image:               image.ImageName,
		JupyterHub:          hub,
		Replicas:            cfg.APIReplicas,
	})
	if err != nil {
		return fmt.Errorf("failed to declare MaaS platform: %w", err)
	}

	ctx.Export("registryUrl", models.RepositoryURL)
	ctx.Export("appImage", image.ImageName)
	ctx.Export("jupyterhubUrl", hub.PublicURL)
	ctx.Export("dashboardUrl", platform.DashboardURL)
	ctx.Export("litellmUrl", platform.LiteLLMURL)
	ctx.Export("packagerProjects", projects)
	return nil
}
