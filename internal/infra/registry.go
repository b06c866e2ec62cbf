package infra

import (
	"encoding/json"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecr"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// RegistryArgs configures an ECR repository
type RegistryArgs struct {
	Name        string
	KeepImages  int
	ForceDelete bool
	Tags        map[string]string
}

// Registry is an ECR repository with a retention policy
type Registry struct {
	pulumi.ResourceState

	RepositoryURL pulumi.StringOutput
	Arn           pulumi.StringOutput
	Name          pulumi.StringOutput
	RegistryID    pulumi.StringOutput
}

func NewRegistry(ctx *pulumi.Context, name string, args *RegistryArgs, opts ...pulumi.ResourceOption) (*Registry, error) {
	component := &Registry{}
	if err := ctx.RegisterComponentResource("maas:infra:Registry", name, component, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(component)

	repo, err := ecr.NewRepository(ctx, name, &ecr.RepositoryArgs{
		Name:               pulumi.String(args.Name),
		ImageTagMutability: pulumi.String("MUTABLE"),
		ImageScanningConfiguration: &ecr.RepositoryImageScanningConfigurationArgs{
			ScanOnPush: pulumi.Bool(true),
		},
		EncryptionConfigurations: ecr.RepositoryEncryptionConfigurationArray{
			&ecr.RepositoryEncryptionConfigurationArgs{
				EncryptionType: pulumi.String("AES256"),
			},
		},
		ForceDelete: pulumi.Bool(args.ForceDelete),
		Tags:        pulumi.ToStringMap(args.Tags),
	}, parent)
	if err != nil {
		return nil, err
	}

	policy, err := lifecyclePolicy(args.KeepImages)
	if err != nil {
		return nil, err
	}
	_, err = ecr.NewLifecyclePolicy(ctx, name+"-lifecycle", &ecr.LifecyclePolicyArgs{
		Repository: repo.Name,
		Policy:     pulumi.String(policy),
	}, parent)
	if err != nil {
		return nil, err
	}

	component.RepositoryURL = repo.RepositoryUrl
	component.Arn = repo.Arn
	component.Name = repo.Name
	component.RegistryID = repo.RegistryId

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"repositoryUrl": repo.RepositoryUrl,
		"arn":           repo.Arn,
		"name":          repo.Name,
		"registryId":    repo.RegistryId,
	}); err != nil {
		return nil, err
	}
	return component, nil
}

type lifecycleRule struct {
	RulePriority int                `json:"rulePriority"`
	Description  string             `json:"description"`
	Selection    lifecycleSelection `json:"selection"`
	Action       lifecycleAction    `json:"action"`
}

type lifecycleSelection struct {
	TagStatus   string `json:"tagStatus"`
	CountType   string `json:"countType"`
	CountNumber int    `json:"countNumber"`
}

type lifecycleAction struct {
	Type string `json:"type"`
}

// lifecyclePolicy expires every image beyond the newest keep
func lifecyclePolicy(keep int) (string, error) {
	if keep < 1 {
		keep = 10
	}
	doc := map[string][]lifecycleRule{
		"rules": {{
			RulePriority: 1,
			Description:  "Keep only the most recent images",
			Selection: lifecycleSelection{
				TagStatus:   "any",
				CountType:   "imageCountMoreThan",
				CountNumber: keep,
			},
			Action: lifecycleAction{Type: "expire"},
		}},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
