package infra

import (
	"sync"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const testAccount = "123456789012"

// platformMocks records every resource and fills in provider-computed
// outputs the components read.
type platformMocks struct {
	mu        sync.Mutex
	resources []pulumi.MockResourceArgs
}

func (m *platformMocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	m.mu.Lock()
	m.resources = append(m.resources, args)
	m.mu.Unlock()

	outputs := args.Inputs.Copy()
	id := args.Name + "-id"
	if args.ID != "" {
		id = args.ID
	}

	switch args.TypeToken {
	case "aws:ecr/repository:Repository":
		name := args.Inputs["name"].StringValue()
		outputs["repositoryUrl"] = resource.NewStringProperty(testAccount + ".dkr.ecr.us-east-1.amazonaws.com/" + name)
		outputs["arn"] = resource.NewStringProperty("arn:aws:ecr:us-east-1:" + testAccount + ":repository/" + name)
		outputs["registryId"] = resource.NewStringProperty(testAccount)
	case "aws:s3/bucket:Bucket":
		outputs["bucket"] = resource.NewStringProperty(args.Name)
		outputs["arn"] = resource.NewStringProperty("arn:aws:s3:::" + args.Name)
	case "aws:iam/role:Role":
		outputs["name"] = resource.NewStringProperty(args.Name)
		outputs["arn"] = resource.NewStringProperty("arn:aws:iam::" + testAccount + ":role/" + args.Name)
	case "aws:ssm/parameter:Parameter":
		outputs["name"] = resource.NewStringProperty("/" + args.Name)
		outputs["arn"] = resource.NewStringProperty("arn:aws:ssm:us-east-1:" + testAccount + ":parameter/" + args.Name)
	case "aws:codebuild/project:Project":
		outputs["name"] = resource.NewStringProperty(args.Name)
	case "docker:index/image:Image":
		outputs["repoDigest"] = resource.NewStringProperty("sha256:0123")
	case "random:index/randomId:RandomId":
		outputs["hex"] = resource.NewStringProperty("00ff00ff")
	case "random:index/randomPassword:RandomPassword":
		outputs["result"] = resource.NewStringProperty("generated")
	case "kubernetes:helm.sh/v3:Release":
		outputs["status"] = resource.NewObjectProperty(resource.PropertyMap{
			"namespace": args.Inputs["namespace"],
			"status":    resource.NewStringProperty("deployed"),
		})
	case "kubernetes:core/v1:Service":
		outputs["status"] = resource.NewObjectProperty(resource.NewPropertyMapFromMap(map[string]interface{}{
			"loadBalancer": map[string]interface{}{
				"ingress": []interface{}{
					map[string]interface{}{"hostname": "lb.example.com"},
				},
			},
		}))
	}
	return id, outputs, nil
}

func (m *platformMocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	if args.Token == "aws:ecr/getAuthorizationToken:getAuthorizationToken" {
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":                 testAccount,
			"authorizationToken": "QVdTOnNlY3JldA==",
			"userName":           "AWS",
			"password":           "secret",
			"proxyEndpoint":      "https://" + testAccount + ".dkr.ecr.us-east-1.amazonaws.com",
			"expiresAt":          "2030-01-01T00:00:00Z",
		}), nil
	}
	return args.Args, nil
}

// ofType returns the recorded custom resources of one type
func (m *platformMocks) ofType(token string) []pulumi.MockResourceArgs {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []pulumi.MockResourceArgs
	for _, r := range m.resources {
		if r.TypeToken == token {
			out = append(out, r)
		}
	}
	return out
}

// lookup walks nested object properties
func lookup(v resource.PropertyValue, keys ...string) resource.PropertyValue {
	for _, k := range keys {
		if v.IsSecret() {
			v = v.SecretValue().Element
		}
		if !v.IsObject() {
			return resource.NewNullProperty()
		}
		v = v.ObjectValue()[resource.PropertyKey(k)]
	}
	return v
}
