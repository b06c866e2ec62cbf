package infra

import (
	"fmt"

	appsv1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/apps/v1"
	corev1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/core/v1"
	helmv3 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/helm/v3"
	metav1 "github.com/pulumi/pulumi-kubernetes/sdk/v4/go/kubernetes/meta/v1"
	"github.com/pulumi/pulumi-random/sdk/v4/go/random"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const (
	litellmChart    = "oci://ghcr.io/berriai/litellm-helm"
	litellmName     = "litellm"
	apiName         = "maas-api"
	apiPort         = 3001
	secretName      = "maas-secrets"
	masterKeyKey    = "masterkey"
	hubTokenKey     = "jupyterhub-token"
	litellmPort     = 4000
	apiHealthPath   = "/api/health"
	defaultReplicas = 2
)

// MaaSPlatformArgs configures the gateway namespace
type MaaSPlatformArgs struct {
	Namespace           string
	LiteLLMChartVersion string
	LiteLLMPublicURL    string
	Catalog             *Catalog
	Image               pulumi.StringInput
	JupyterHub          *JupyterHub // optional
	Replicas            int
}

// MaaSPlatform is LiteLLM plus the maas-api proxy in one namespace
type MaaSPlatform struct {
	pulumi.ResourceState

	DashboardURL pulumi.StringOutput
	LiteLLMURL   pulumi.StringOutput
	MasterKey    pulumi.StringOutput // secret
}

func NewMaaSPlatform(ctx *pulumi.Context, name string, args *MaaSPlatformArgs, opts ...pulumi.ResourceOption) (*MaaSPlatform, error) {
	component := &MaaSPlatform{}
	if err := ctx.RegisterComponentResource("maas:infra:MaaSPlatform", name, component, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(component)

	ns, err := corev1.NewNamespace(ctx, name+"-ns", &corev1.NamespaceArgs{
		Metadata: &metav1.ObjectMetaArgs{
			Name: pulumi.String(args.Namespace),
		},
	}, parent)
	if err != nil {
		return nil, err
	}
	namespace := ns.Metadata.Name()

	password, err := random.NewRandomPassword(ctx, name+"-master-key", &random.RandomPasswordArgs{
		Length:  pulumi.Int(40),
		Special: pulumi.Bool(false),
	}, parent)
	if err != nil {
		return nil, err
	}
	masterKey := pulumi.ToSecret(pulumi.Sprintf("sk-%s", password.Result)).(pulumi.StringOutput)

	secretData := pulumi.StringMap{masterKeyKey: masterKey}
	if args.JupyterHub != nil {
		secretData[hubTokenKey] = args.JupyterHub.APIToken
	}
	secret, err := corev1.NewSecret(ctx, name+"-secrets", &corev1.SecretArgs{
		Metadata: &metav1.ObjectMetaArgs{
			Name:      pulumi.String(secretName),
			Namespace: namespace,
		},
		Type:       pulumi.String("Opaque"),
		StringData: secretData,
	}, parent)
	if err != nil {
		return nil, err
	}

	var catalogModels []interface{}
	if args.Catalog != nil {
		catalogModels = args.Catalog.LiteLLMModelList()
	}
	_, err = helmv3.NewRelease(ctx, name+"-litellm", &helmv3.ReleaseArgs{
		Name:      pulumi.String(litellmName),
		Chart:     pulumi.String(litellmChart),
		Version:   pulumi.String(args.LiteLLMChartVersion),
		Namespace: namespace,
		Timeout:   pulumi.Int(600),
		Values:    helmValues(litellmValues(secret.Metadata.Name(), catalogModels)),
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to install LiteLLM: %w", err)
	}

	litellmURL := pulumi.Sprintf("http://%s.%s.svc.cluster.local:%d", litellmName, args.Namespace, litellmPort)
	publicLiteLLM := litellmURL
	if args.LiteLLMPublicURL != "" {
		publicLiteLLM = pulumi.String(args.LiteLLMPublicURL).ToStringOutput()
	}

	env := corev1.EnvVarArray{
		corev1.EnvVarArgs{Name: pulumi.String("PORT"), Value: pulumi.Sprintf("%d", apiPort)},
		corev1.EnvVarArgs{Name: pulumi.String("ENV"), Value: pulumi.String("production")},
		corev1.EnvVarArgs{Name: pulumi.String("LITELLM_API_BASE"), Value: litellmURL},
		corev1.EnvVarArgs{Name: pulumi.String("LITELLM_PUBLIC_URL"), Value: publicLiteLLM},
		secretEnv("LITELLM_MASTER_KEY", secret, masterKeyKey),
	}
	if hub := args.JupyterHub; hub != nil {
		env = append(env,
			corev1.EnvVarArgs{Name: pulumi.String("JUPYTERHUB_API_URL"), Value: hub.APIURL},
			corev1.EnvVarArgs{Name: pulumi.String("JUPYTERHUB_PUBLIC_URL"), Value: hub.PublicURL},
			secretEnv("JUPYTERHUB_API_TOKEN", secret, hubTokenKey),
		)
	}

	replicas := args.Replicas
	if replicas < 1 {
		replicas = defaultReplicas
	}
	labels := pulumi.StringMap{"app": pulumi.String(apiName)}

	_, err = appsv1.NewDeployment(ctx, name+"-api", &appsv1.DeploymentArgs{
		Metadata: &metav1.ObjectMetaArgs{
			Name:      pulumi.String(apiName),
			Namespace: namespace,
			Labels:    labels,
		},
		Spec: &appsv1.DeploymentSpecArgs{
			Replicas: pulumi.Int(replicas),
			Selector: &metav1.LabelSelectorArgs{
				MatchLabels: labels,
			},
			Template: &corev1.PodTemplateSpecArgs{
				Metadata: &metav1.ObjectMetaArgs{
					Labels: labels,
				},
				Spec: &corev1.PodSpecArgs{
					Containers: corev1.ContainerArray{
						corev1.ContainerArgs{
							Name:  pulumi.String(apiName),
							Image: args.Image.ToStringOutput(),
							Ports: corev1.ContainerPortArray{
								corev1.ContainerPortArgs{
									Name:          pulumi.String("http"),
									ContainerPort: pulumi.Int(apiPort),
								},
							},
							Env: env,
							ReadinessProbe: &corev1.ProbeArgs{
								HttpGet: &corev1.HTTPGetActionArgs{
									Path: pulumi.String(apiHealthPath),
									Port: pulumi.Int(apiPort),
								},
								InitialDelaySeconds: pulumi.Int(5),
								PeriodSeconds:       pulumi.Int(10),
							},
							Resources: &corev1.ResourceRequirementsArgs{
								Requests: pulumi.StringMap{
									"cpu":    pulumi.String("100m"),
									"memory": pulumi.String("128Mi"),
								},
								Limits: pulumi.StringMap{
									"memory": pulumi.String("256Mi"),
								},
							},
						},
					},
				},
			},
		},
	}, parent)
	if err != nil {
		return nil, err
	}

	svc, err := corev1.NewService(ctx, name+"-api", &corev1.ServiceArgs{
		Metadata: &metav1.ObjectMetaArgs{
			Name:      pulumi.String(apiName),
			Namespace: namespace,
			Labels:    labels,
		},
		Spec: &corev1.ServiceSpecArgs{
			Type:     pulumi.String("LoadBalancer"),
			Selector: labels,
			Ports: corev1.ServicePortArray{
				corev1.ServicePortArgs{
					Name:       pulumi.String("http"),
					Port:       pulumi.Int(80),
					TargetPort: pulumi.Int(apiPort),
					Protocol:   pulumi.String("TCP"),
				},
			},
		},
	}, parent)
	if err != nil {
		return nil, err
	}

	component.DashboardURL = loadBalancerURL(svc)
	component.LiteLLMURL = litellmURL
	component.MasterKey = masterKey

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"dashboardUrl": component.DashboardURL,
		"litellmUrl":   component.LiteLLMURL,
		"masterKey":    component.MasterKey,
	}); err != nil {
		return nil, err
	}
	return component, nil
}

func secretEnv(name string, secret *corev1.Secret, key string) corev1.EnvVarArgs {
	return corev1.EnvVarArgs{
		Name: pulumi.String(name),
		ValueFrom: &corev1.EnvVarSourceArgs{
			SecretKeyRef: &corev1.SecretKeySelectorArgs{
				Name: secret.Metadata.Name(),
				Key:  pulumi.String(key),
			},
		},
	}
}

// litellmValues configures the LiteLLM chart: master key from secretRef, the
// catalog as model_list and a standalone Postgres for key and spend tracking.
func litellmValues(secretRef interface{}, models []interface{}) map[string]interface{} {
	if models == nil {
		models = []interface{}{}
	}
	return map[string]interface{}{
		"fullnameOverride":    litellmName,
		"masterkeySecretName": secretRef,
		"masterkeySecretKey":  masterKeyKey,
		"service": map[string]interface{}{
			"type": "ClusterIP",
			"port": litellmPort,
		},
		"db": map[string]interface{}{
			"deployStandalone": true,
		},
		"proxy_config": map[string]interface{}{
			"model_list": models,
			"general_settings": map[string]interface{}{
				"master_key": "os.environ/PROXY_MASTER_KEY",
			},
		},
	}
}
