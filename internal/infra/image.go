package infra

import (
	"path/filepath"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecr"
	"github.com/pulumi/pulumi-docker/sdk/v4/go/docker"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// AppImageArgs configures the maas-api image build
type AppImageArgs struct {
	Registry   *Registry
	Context    string
	Dockerfile string
	Tag        string
}

// AppImage is the maas-api container image pushed to ECR
type AppImage struct {
	pulumi.ResourceState

	ImageName  pulumi.StringOutput
	RepoDigest pulumi.StringOutput
}

func NewAppImage(ctx *pulumi.Context, name string, args *AppImageArgs, opts ...pulumi.ResourceOption) (*AppImage, error) {
	component := &AppImage{}
	if err := ctx.RegisterComponentResource("maas:infra:AppImage", name, component, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(component)

	creds := ecr.GetAuthorizationTokenOutput(ctx, ecr.GetAuthorizationTokenOutputArgs{
		RegistryId: args.Registry.RegistryID,
	}, parent)

	dockerfile := args.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	tag := args.Tag
	if tag == "" {
		tag = "latest"
	}

	image, err := docker.NewImage(ctx, name, &docker.ImageArgs{
		ImageName: pulumi.Sprintf("%s:%s", args.Registry.RepositoryURL, tag),
		Build: &docker.DockerBuildArgs{
			Context:    pulumi.String(args.Context),
			Dockerfile: pulumi.String(filepath.Join(args.Context, dockerfile)),
			Platform:   pulumi.String("linux/amd64"),
		},
		Registry: &docker.RegistryArgs{
			Server:   args.Registry.RepositoryURL,
			Username: creds.UserName(),
			Password: pulumi.ToSecret(creds.Password()).(pulumi.StringOutput),
		},
	}, parent)
	if err != nil {
		return nil, err
	}

	component.ImageName = image.ImageName
	component.RepoDigest = image.RepoDigest

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"imageName":  image.ImageName,
		"repoDigest": image.RepoDigest,
	}); err != nil {
		return nil, err
	}
	return component, nil
}
