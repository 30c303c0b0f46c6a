package models

type ServiceName string

const (
	ServiceSigner    ServiceName = "signer"
	ServiceExecution ServiceName = "execution"
	ServiceConsensus ServiceName = "consensus"
)

type ServiceRole string

const (
	ServiceRoleService ServiceRole = "service" // long-running client
	ServiceRoleStep    ServiceRole = "step"    // one-shot lifecycle step
)

// ServiceSpec is the compiled launch description of one managed container.
// Specs are produced by the compiler and never mutated afterwards.
type ServiceSpec struct {
	// Logical service this container belongs to
	Service ServiceName `json:"service"`

	// service | step
	Role ServiceRole `json:"role"`

	// Container name (project-scoped)
	Name string `json:"name"`

	Image      string   `json:"image"`
	Entrypoint []string `json:"entrypoint,omitempty"`
	Args       []string `json:"args,omitempty"`
	WorkingDir string   `json:"working_dir,omitempty"`
	TTY        bool     `json:"tty"`

	// Network / exposure intent
	Ports []PortBinding `json:"ports,omitempty"`

	// Mounts in launch order
	Mounts []MountSpec `json:"mounts,omitempty"`

	// Dependency graph (values reference other services)
	DependsOn []ServiceName `json:"depends_on,omitempty"`

	// Bridge network shared by the stack, empty for none
	Network string `json:"network,omitempty"`

	Labels map[string]string `json:"labels,omitempty"`
}

func (s ServiceSpec) IsStep() bool {
	return s.Role == ServiceRoleStep
}
