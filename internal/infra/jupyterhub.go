package infra

import (
	"fmt"

	corev1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/core/v1"
	helmv3 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/helm/v3"
	"github.com/pulumi/pulumi-random/sdk/v4/go/random"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const (
	jupyterHubChartRepo = "https://hub.jupyter.org/helm-chart/"
	hubServiceName      = "maas-api"
)

// JupyterHubArgs configures the JupyterHub release
type JupyterHubArgs struct {
	Namespace      string
	ChartVersion   string
	Profiles       []NotebookProfile
	Expose         bool
	LiteLLMURL     pulumi.StringInput
	DefaultAIModel string
}

// JupyterHub is the notebook service shared by all platform users
type JupyterHub struct {
	pulumi.ResourceState

	APIToken  pulumi.StringOutput // secret
	APIURL    pulumi.StringOutput
	PublicURL pulumi.StringOutput
}

func NewJupyterHub(ctx *pulumi.Context, name string, args *JupyterHubArgs, opts ...pulumi.ResourceOption) (*JupyterHub, error) {
	component := &JupyterHub{}
	if err := ctx.RegisterComponentResource("maas:infra:JupyterHub", name, component, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(component)

	proxyToken, err := random.NewRandomId(ctx, name+"-proxy-token", &random.RandomIdArgs{
		ByteLength: pulumi.Int(32),
	}, parent)
	if err != nil {
		return nil, err
	}
	apiToken, err := random.NewRandomId(ctx, name+"-api-token", &random.RandomIdArgs{
		ByteLength: pulumi.Int(32),
	}, parent)
	if err != nil {
		return nil, err
	}
	secretAPIToken := pulumi.ToSecret(apiToken.Hex).(pulumi.StringOutput)

	profiles, err := profileList(args.Profiles)
	if err != nil {
		return nil, err
	}

	values := jupyterHubValues(jupyterHubValuesInput{
		ProxyToken:     pulumi.ToSecret(proxyToken.Hex),
		APIToken:       secretAPIToken,
		Expose:         args.Expose,
		Profiles:       profiles,
		LiteLLMURL:     args.LiteLLMURL,
		DefaultAIModel: args.DefaultAIModel,
	})

	release, err := helmv3.NewRelease(ctx, name, &helmv3.ReleaseArgs{
		Name:            pulumi.String("jupyterhub"),
		Chart:           pulumi.String("jupyterhub"),
		Version:         pulumi.String(args.ChartVersion),
		Namespace:       pulumi.String(args.Namespace),
		CreateNamespace: pulumi.Bool(true),
		RepositoryOpts: &helmv3.RepositoryOptsArgs{
			Repo: pulumi.String(jupyterHubChartRepo),
		},
		Timeout: pulumi.Int(900),
		Values:  helmValues(values),
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to install JupyterHub: %w", err)
	}

	component.APIToken = secretAPIToken
	component.APIURL = pulumi.Sprintf("http://hub.%s.svc.cluster.local:8081/hub/api", args.Namespace)
	component.PublicURL = pulumi.Sprintf("http://proxy-public.%s.svc.cluster.local", args.Namespace)

	if args.Expose {
		// Reading the service after the release keeps the lookup ordered.
		serviceID := release.Status.Namespace().Elem().ApplyT(func(ns string) pulumi.ID {
			if ns == "" {
				ns = args.Namespace
			}
			return pulumi.ID(ns + "/proxy-public")
		}).(pulumi.IDOutput)

		proxy, err := corev1.GetService(ctx, name+"-proxy-public", serviceID, nil, parent)
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy-public service: %w", err)
		}
		component.PublicURL = loadBalancerURL(proxy)
	}

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"apiToken":  component.APIToken,
		"apiUrl":    component.APIURL,
		"publicUrl": component.PublicURL,
	}); err != nil {
		return nil, err
	}
	return component, nil
}

type jupyterHubValuesInput struct {
	ProxyToken     interface{}
	APIToken       interface{}
	Expose         bool
	Profiles       []interface{}
	LiteLLMURL     interface{}
	DefaultAIModel string
}

func jupyterHubValues(in jupyterHubValuesInput) map[string]interface{} {
	serviceType := "ClusterIP"
	if in.Expose {
		serviceType = "LoadBalancer"
	}
	model := in.DefaultAIModel
	if model == "" {
		model = "openai-chat:gpt-3.5-turbo"
	}

	return map[string]interface{}{
		"proxy": map[string]interface{}{
			"secretToken": in.ProxyToken,
			"service": map[string]interface{}{
				"type": serviceType,
			},
		},
		"hub": map[string]interface{}{
			"config": map[string]interface{}{
				"JupyterHub": map[string]interface{}{
					"allow_named_servers": true,
				},
			},
			"services": map[string]interface{}{
				hubServiceName: map[string]interface{}{
					"apiToken": in.APIToken,
				},
			},
			"loadRoles": map[string]interface{}{
				hubServiceName: map[string]interface{}{
					"description": "Notebook management for the MaaS dashboard",
					"scopes":      []string{"admin:users", "admin:servers", "servers", "list:users", "read:users"},
					"services":    []string{hubServiceName},
				},
			},
		},
		"singleuser": map[string]interface{}{
			"profileList": in.Profiles,
			"extraEnv": map[string]interface{}{
				"OPENAI_API_BASE":          in.LiteLLMURL,
				"JUPYTER_AI_DEFAULT_MODEL": model,
			},
		},
	}
}

// profileList renders notebook profiles as KubeSpawner profiles. The slug is
// what the API passes as user_options.profile.
func profileList(profiles []NotebookProfile) ([]interface{}, error) {
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}

	out := make([]interface{}, 0, len(profiles))
	for _, p := range profiles {
		if p.CPU <= 0 || p.Memory == "" {
			return nil, fmt.Errorf("notebook profile %q needs cpu and memory", p.Name)
		}
		override := map[string]interface{}{
			"cpu_guarantee": p.CPU,
			"cpu_limit":     p.CPU,
			"mem_guarantee": p.Memory,
			"mem_limit":     p.Memory,
		}
		if p.Image != "" {
			override["image"] = p.Image
		}
		if p.GPUs > 0 {
			override["extra_resource_limits"] = map[string]interface{}{
				"nvidia.com/gpu": fmt.Sprintf("%d", p.GPUs),
			}
			override["tolerations"] = []interface{}{
				map[string]interface{}{
					"key":      "nvidia.com/gpu",
					"operator": "Exists",
					"effect":   "NoSchedule",
				},
			}
		}

		entry := map[string]interface{}{
			"display_name":         p.Name,
			"slug":                 p.Name,
			"description":          p.Description,
			"kubespawner_override": override,
		}
		if p.Default {
			entry["default"] = true
		}
		out = append(out, entry)
	}
	return out, nil
}

// loadBalancerURL resolves to the first ingress hostname or IP of svc
func loadBalancerURL(svc *corev1.Service) pulumi.StringOutput {
	return svc.Status.LoadBalancer().Ingress().ApplyT(func(ingress []corev1.LoadBalancerIngress) string {
		for _, ing := range ingress {
			if ing.Hostname != nil && *ing.Hostname != "" {
				return "http://" + *ing.Hostname
			}
			if ing.Ip != nil && *ing.Ip != "" {
				return "http://" + *ing.Ip
			}
		}
		return ""
	}).(pulumi.StringOutput)
}
