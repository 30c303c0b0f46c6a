package interfaces

import (
	"context"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

// Engine runs compiled service specs as containers. Implementations exist for
// the Docker Engine API and for the docker CLI.
type Engine interface {
	// Launch starts a long-running container and returns once it is running.
	Launch(ctx context.Context, spec models.ServiceSpec) (models.RunHandle, error)

	// Wait blocks until the container exits and returns its status code.
	Wait(ctx context.Context, handle models.RunHandle) (int64, error)

	// RunOnce runs a container to completion, capturing its output. A
	// non-zero exit is reported in the result, not as an error.
	RunOnce(ctx context.Context, spec models.ServiceSpec) (models.StepResult, error)

	Stop(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	RemoveNetwork(ctx context.Context, name string) error

	// Sweep removes every container labelled with the project.
	Sweep(ctx context.Context, project string) error
}
