package docker

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/client"

	"github.com/ezenkico/deploy-commander/ethnode/services"
)

func projectFilter(project string) client.Filters {
	return make(client.Filters).
		Add("label", services.LabelProject+"="+project)
}

// TearDownServices removes every container labelled with the project, running
// or not.
func (p *DockerPlatform) TearDownServices(ctx context.Context, project string) error {
	containers, err := p.client.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: projectFilter(project),
	})
	if err != nil {
		return fmt.Errorf("list project containers (project=%s): %w", project, err)
	}

	for _, c := range containers.Items {
		p.log.Warn().Str("container", c.ID).Str("project", project).Msg("SWEEP CONTAINER")

		// Stop (best-effort) then remove
		_, _ = p.client.ContainerStop(ctx, c.ID, client.ContainerStopOptions{})
		_, err = p.client.ContainerRemove(ctx, c.ID, client.ContainerRemoveOptions{
			Force:         true,
			RemoveVolumes: false,
		})
		if err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("remove container %q: %w", c.ID, err)
		}
	}

	return nil
}

func (p *DockerPlatform) TearDownNetworks(ctx context.Context, project string) error {
	nets, err := p.client.NetworkList(ctx, client.NetworkListOptions{
		Filters: projectFilter(project),
	})
	if err != nil {
		return fmt.Errorf("list project networks (project=%s): %w", project, err)
	}

	for _, n := range nets.Items {
		if n.Name == "" || n.ID == "" {
			continue
		}

		// Prefer removing by ID to avoid name collisions.
		if _, err := p.client.NetworkRemove(ctx, n.ID, client.NetworkRemoveOptions{}); err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("remove network %q (%s): %w", n.Name, n.ID, err)
		}
	}

	return nil
}

// Sweep removes what a previous run of the project left behind. Volumes are
// kept.
func (p *DockerPlatform) Sweep(ctx context.Context, project string) error {
	if err := p.TearDownServices(ctx, project); err != nil {
		return err
	}
	return p.TearDownNetworks(ctx, project)
}
