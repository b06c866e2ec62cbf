package infra

import (
	"encoding/json"
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/codebuild"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ssm"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"gopkg.in/yaml.v3"
)

const modelcarModule = "github.com/mrmushfiq/maas-platform/cmd/modelcar"

// ModelPackagerArgs configures the CodeBuild project that turns one Hugging
// Face model into a modelcar image.
type ModelPackagerArgs struct {
	Registry        *Registry
	Model           CatalogModel
	ComputeType     string
	ModelcarVersion string
	HFToken         pulumi.StringOutput
	HasHFToken      bool
	Tags            map[string]string
}

// ModelPackager is a CodeBuild project plus its role and cache bucket
type ModelPackager struct {
	pulumi.ResourceState

	ProjectName pulumi.StringOutput
	BucketName  pulumi.StringOutput
	RoleArn     pulumi.StringOutput
	ImageURI    pulumi.StringOutput
}

func NewModelPackager(ctx *pulumi.Context, name string, args *ModelPackagerArgs, opts ...pulumi.ResourceOption) (*ModelPackager, error) {
	component := &ModelPackager{}
	if err := ctx.RegisterComponentResource("maas:infra:ModelPackager", name, component, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(component)
	tags := pulumi.ToStringMap(args.Tags)

	bucket, err := s3.NewBucket(ctx, name+"-cache", &s3.BucketArgs{
		ForceDestroy: pulumi.Bool(true),
		Tags:         tags,
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to create packager cache bucket: %w", err)
	}
	_, err = s3.NewBucketPublicAccessBlock(ctx, name+"-cache-pab", &s3.BucketPublicAccessBlockArgs{
		Bucket:                bucket.ID(),
		BlockPublicAcls:       pulumi.Bool(true),
		BlockPublicPolicy:     pulumi.Bool(true),
		IgnorePublicAcls:      pulumi.Bool(true),
		RestrictPublicBuckets: pulumi.Bool(true),
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to block public access: %w", err)
	}

	var tokenParam *ssm.Parameter
	if args.HasHFToken {
		tokenParam, err = ssm.NewParameter(ctx, name+"-hf-token", &ssm.ParameterArgs{
			Type:  pulumi.String("SecureString"),
			Value: args.HFToken,
			Tags:  tags,
		}, parent)
		if err != nil {
			return nil, fmt.Errorf("failed to store HF token: %w", err)
		}
	}

	role, err := iam.NewRole(ctx, name+"-role", &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(`{
			"Version": "2012-10-17",
			"Statement": [
				{
					"Action": "sts:AssumeRole",
					"Effect": "Allow",
					"Principal": {
						"Service": "codebuild.amazonaws.com"
					}
				}
			]
		}`),
		Tags: tags,
	}, parent)
	if err != nil {
		return nil, err
	}

	paramArn := pulumi.String("").ToStringOutput()
	if tokenParam != nil {
		paramArn = tokenParam.Arn
	}
	_, err = iam.NewRolePolicy(ctx, name+"-policy", &iam.RolePolicyArgs{
		Role: role.Name,
		Policy: pulumi.All(args.Registry.Arn, bucket.Arn, paramArn).ApplyT(func(in []interface{}) (string, error) {
			return packagerPolicy(in[0].(string), in[1].(string), in[2].(string))
		}).(pulumi.StringOutput),
	}, parent)
	if err != nil {
		return nil, err
	}

	buildSpec, err := BuildSpec(args.ModelcarVersion)
	if err != nil {
		return nil, err
	}

	imageURI := pulumi.Sprintf("%s:%s", args.Registry.RepositoryURL, args.Model.ImageTag())
	revision := args.Model.Revision
	if revision == "" {
		revision = "main"
	}
	env := codebuild.ProjectEnvironmentEnvironmentVariableArray{
		plainVar("MODEL_ID", pulumi.String(args.Model.HFModelID)),
		plainVar("MODEL_REVISION", pulumi.String(revision)),
		plainVar("IMAGE", imageURI),
	}
	if tokenParam != nil {
		env = append(env, &codebuild.ProjectEnvironmentEnvironmentVariableArgs{
			Name:  pulumi.String("HF_TOKEN"),
			Value: tokenParam.Name,
			Type:  pulumi.String("PARAMETER_STORE"),
		})
	}

	computeType := args.ComputeType
	if computeType == "" {
		computeType = "BUILD_GENERAL1_LARGE"
	}
	project, err := codebuild.NewProject(ctx, name, &codebuild.ProjectArgs{
		Description:  pulumi.Sprintf("Packages %s as a modelcar image", args.Model.HFModelID),
		ServiceRole:  role.Arn,
		BuildTimeout: pulumi.Int(120),
		Artifacts: &codebuild.ProjectArtifactsArgs{
			Type: pulumi.String("NO_ARTIFACTS"),
		},
		Cache: &codebuild.ProjectCacheArgs{
			Type:     pulumi.String("S3"),
			Location: bucket.Bucket,
		},
		Environment: &codebuild.ProjectEnvironmentArgs{
			ComputeType:          pulumi.String(computeType),
			Image:                pulumi.String("aws/codebuild/amazonlinux2-x86_64-standard:5.0"),
			Type:                 pulumi.String("LINUX_CONTAINER"),
			EnvironmentVariables: env,
		},
		Source: &codebuild.ProjectSourceArgs{
			Type:      pulumi.String("NO_SOURCE"),
			Buildspec: pulumi.String(buildSpec),
		},
		Tags: tags,
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to create packager project: %w", err)
	}

	component.ProjectName = project.Name
	component.BucketName = bucket.Bucket
	component.RoleArn = role.Arn
	component.ImageURI = imageURI

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"projectName": project.Name,
		"bucketName":  bucket.Bucket,
		"roleArn":     role.Arn,
		"imageUri":    imageURI,
	}); err != nil {
		return nil, err
	}
	return component, nil
}

func plainVar(name string, value pulumi.StringInput) *codebuild.ProjectEnvironmentEnvironmentVariableArgs {
	return &codebuild.ProjectEnvironmentEnvironmentVariableArgs{
		Name:  pulumi.String(name),
		Value: value,
		Type:  pulumi.String("PLAINTEXT"),
	}
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect   string   `json:"Effect"`
	Action   []string `json:"Action"`
	Resource []string `json:"Resource"`
}

// packagerPolicy grants push to one repository, build logs, the cache bucket
// and, when paramArn is set, the HF token parameter.
func packagerPolicy(repoArn, bucketArn, paramArn string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{Effect: "Allow", Action: []string{"ecr:GetAuthorizationToken"}, Resource: []string{"*"}},
			{
				Effect: "Allow",
				Action: []string{
					"ecr:BatchCheckLayerAvailability",
					"ecr:BatchGetImage",
					"ecr:GetDownloadUrlForLayer",
					"ecr:InitiateLayerUpload",
					"ecr:UploadLayerPart",
					"ecr:CompleteLayerUpload",
					"ecr:PutImage",
				},
				Resource: []string{repoArn},
			},
			{
				Effect:   "Allow",
				Action:   []string{"logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"},
				Resource: []string{"*"},
			},
			{
				Effect:   "Allow",
				Action:   []string{"s3:GetObject", "s3:PutObject", "s3:ListBucket"},
				Resource: []string{bucketArn, bucketArn + "/*"},
			},
		},
	}
	if paramArn != "" {
		doc.Statement = append(doc.Statement, policyStatement{
			Effect:   "Allow",
			Action:   []string{"ssm:GetParameters"},
			Resource: []string{paramArn},
		})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// goRuntimeVersion is the CodeBuild Go runtime; it tracks the go directive in
// go.mod so that go install does not fetch another toolchain.
const goRuntimeVersion = "1.23"

type buildSpecDoc struct {
	Version string                    `yaml:"version"`
	Env     *buildSpecEnv             `yaml:"env,omitempty"`
	Phases  map[string]buildSpecPhase `yaml:"phases"`
	Cache   buildSpecCache            `yaml:"cache"`
}

type buildSpecEnv struct {
	Shell string `yaml:"shell"`
}

type buildSpecPhase struct {
	RuntimeVersions map[string]string `yaml:"runtime-versions,omitempty"`
	Commands        []string          `yaml:"commands"`
}

type buildSpecCache struct {
	Paths []string `yaml:"paths"`
}

// BuildSpec renders the CodeBuild buildspec that installs modelcar at the
// given module version and packages $MODEL_ID into $IMAGE. modelcar reads
// HF_TOKEN from the environment when the project provides it.
func BuildSpec(modelcarVersion string) (string, error) {
	if modelcarVersion == "" {
		modelcarVersion = "latest"
	}

	doc := buildSpecDoc{
		Version: "0.2",
		Env:     &buildSpecEnv{Shell: "bash"},
		Phases: map[string]buildSpecPhase{
			"install": {
				RuntimeVersions: map[string]string{"golang": goRuntimeVersion},
				Commands: []string{
					fmt.Sprintf("go install %s@%s", modelcarModule, modelcarVersion),
				},
			},
			"build": {
				Commands: []string{
					`modelcar build --model "$MODEL_ID" --revision "$MODEL_REVISION" --image "$IMAGE" --output /tmp/model`,
				},
			},
		},
		Cache: buildSpecCache{Paths: []string{"/root/go/pkg/mod/**/*"}},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to render buildspec: %w", err)
	}
	return string(data), nil
}
