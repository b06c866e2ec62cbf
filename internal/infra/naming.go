package infra

import "fmt"

// ResourceNaming derives resource names and tags for one environment.
type ResourceNaming struct {
	Project     string
	Environment string
}

func NewResourceNaming(environment, project string) ResourceNaming {
	return ResourceNaming{Project: project, Environment: environment}
}

// Name returns "<project>-<environment>-<component>"
func (n ResourceNaming) Name(component string) string {
	return fmt.Sprintf("%s-%s-%s", n.Project, n.Environment, component)
}

// Tags are applied to every AWS resource
func (n ResourceNaming) Tags() map[string]string {
	return map[string]string{
		"Project":     n.Project,
		"Environment": n.Environment,
		"ManagedBy":   "pulumi",
	}
}
