package docker

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/client"
)

// Stop is idempotent: a missing container is not an error.
func (p *DockerPlatform) Stop(ctx context.Context, name string) error {
	if _, err := p.client.ContainerStop(ctx, name, client.ContainerStopOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("stop container %q: %w", name, err)
	}
	return nil
}

func (p *DockerPlatform) Remove(ctx context.Context, name string) error {
	_, err := p.client.ContainerRemove(ctx, name, client.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: false,
	})
	if err != nil {
		// If it was already gone, that's fine.
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove container %q: %w", name, err)
	}
	return nil
}

func (p *DockerPlatform) RemoveNetwork(ctx context.Context, name string) error {
	if _, err := p.client.NetworkRemove(ctx, name, client.NetworkRemoveOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove network %q: %w", name, err)
	}
	return nil
}
