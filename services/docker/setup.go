package docker

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"

	"github.com/ezenkico/deploy-commander/ethnode/models"
	"github.com/ezenkico/deploy-commander/ethnode/services"
	"github.com/ezenkico/deploy-commander/ethnode/services/compiler"
)

// NetworkSetup makes sure the stack network exists.
func (p *DockerPlatform) NetworkSetup(ctx context.Context, spec models.ServiceSpec) error {
	if spec.Network == "" {
		return nil
	}

	_, err := p.client.NetworkInspect(ctx, spec.Network, client.NetworkInspectOptions{})
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect network %q: %w", spec.Network, err)
	}

	_, err = p.client.NetworkCreate(ctx, spec.Network, client.NetworkCreateOptions{
		Labels: map[string]string{
			services.LabelProject: spec.Labels[services.LabelProject],
			services.LabelRun:     spec.Labels[services.LabelRun],
		},
	})
	if err != nil {
		// Race-safe: re-inspect
		if _, ie := p.client.NetworkInspect(ctx, spec.Network, client.NetworkInspectOptions{}); ie != nil {
			return fmt.Errorf("create network %q: %w", spec.Network, err)
		}
	}
	return nil
}

// VolumeSetup creates the named volumes a spec mounts.
func (p *DockerPlatform) VolumeSetup(ctx context.Context, spec models.ServiceSpec) error {
	for _, m := range spec.Mounts {
		if m.Type != models.MountTypeVolume {
			continue
		}

		// If it already exists, treat as success.
		_, err := p.client.VolumeInspect(ctx, m.Source, client.VolumeInspectOptions{})
		if err == nil {
			continue
		}
		if !errdefs.IsNotFound(err) {
			return fmt.Errorf("inspect volume %q: %w", m.Source, err)
		}

		_, err = p.client.VolumeCreate(ctx, client.VolumeCreateOptions{
			Name: m.Source,
			Labels: map[string]string{
				services.LabelProject: spec.Labels[services.LabelProject],
				services.LabelService: string(spec.Service),
			},
		})
		if err != nil {
			if _, ie := p.client.VolumeInspect(ctx, m.Source, client.VolumeInspectOptions{}); ie == nil {
				continue
			}
			return fmt.Errorf("create volume %q: %w", m.Source, err)
		}
	}
	return nil
}

// removeExisting drops a container left behind under the same name.
func (p *DockerPlatform) removeExisting(ctx context.Context, name string) error {
	if _, err := p.client.ContainerInspect(ctx, name, client.ContainerInspectOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("inspect container %q: %w", name, err)
	}

	p.log.Warn().Str("container", name).Msg("REMOVE EXISTING CONTAINER")

	// Stop (best-effort) then remove
	_, _ = p.client.ContainerStop(ctx, name, client.ContainerStopOptions{})
	if _, err := p.client.ContainerRemove(ctx, name, client.ContainerRemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove existing container %q: %w", name, err)
	}
	return nil
}

// create prepares networks and volumes, then creates a fresh container and
// starts it.
func (p *DockerPlatform) create(ctx context.Context, spec models.ServiceSpec) (string, error) {
	if err := CheckSpec(spec); err != nil {
		return "", err
	}
	cCfg, hCfg, nCfg, err := ContainerConfig(spec)
	if err != nil {
		return "", err
	}

	if err := p.NetworkSetup(ctx, spec); err != nil {
		return "", err
	}
	if err := p.VolumeSetup(ctx, spec); err != nil {
		return "", err
	}
	if err := p.removeExisting(ctx, spec.Name); err != nil {
		return "", err
	}

	created, err := p.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:           cCfg,
		HostConfig:       hCfg,
		NetworkingConfig: nCfg,
		Name:             spec.Name,
		Image:            spec.Image,
	})
	if err != nil {
		return "", fmt.Errorf("create container %q: %w", spec.Name, err)
	}

	if _, err := p.client.ContainerStart(ctx, created.ID, client.ContainerStartOptions{}); err != nil {
		return created.ID, fmt.Errorf("start container %q: %w", spec.Name, err)
	}
	return created.ID, nil
}

// ContainerConfig converts a spec into Engine API create options.
func ContainerConfig(spec models.ServiceSpec) (*container.Config, *container.HostConfig, *network.NetworkingConfig, error) {
	exposed := network.PortSet{}
	portMap := network.PortMap{}

	for _, b := range spec.Ports {
		if b.Port < 1 || b.Port > 65535 {
			return nil, nil, nil, fmt.Errorf("service %q has invalid port %d", spec.Name, b.Port)
		}
		port, _ := network.PortFrom(uint16(b.Port), network.IPProtocol(b.TransportOrDefault()))
		exposed[port] = struct{}{}

		hostIP := b.HostIP
		if hostIP == "" {
			hostIP = "127.0.0.1"
		}
		addr, err := netip.ParseAddr(hostIP)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("service %q has invalid host_ip %q: %w", spec.Name, hostIP, err)
		}
		portMap[port] = append(portMap[port], network.PortBinding{
			HostIP:   addr,
			HostPort: strconv.Itoa(b.Published()),
		})
	}

	mounts := make([]mount.Mount, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		if err := compiler.CheckMount(m); err != nil {
			return nil, nil, nil, fmt.Errorf("service %q: %w", spec.Name, err)
		}
		mm := mount.Mount{
			Type:     mount.Type(m.Type),
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		}
		if m.Type == models.MountTypeTmpfs {
			opts := &mount.TmpfsOptions{Mode: m.Mode}
			if m.Size != "" {
				size, err := compiler.TmpfsBytes(m.Size)
				if err != nil {
					return nil, nil, nil, err
				}
				opts.SizeBytes = size
			}
			mm.TmpfsOptions = opts
		}
		mounts = append(mounts, mm)
	}

	cCfg := &container.Config{
		Image:        spec.Image,
		Entrypoint:   spec.Entrypoint,
		Cmd:          spec.Args,
		WorkingDir:   spec.WorkingDir,
		Tty:          spec.TTY,
		Labels:       spec.Labels,
		ExposedPorts: exposed,
	}

	hCfg := &container.HostConfig{
		Mounts:       mounts,
		PortBindings: portMap,
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyDisabled,
		},
	}

	nCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{},
	}
	if spec.Network != "" {
		nCfg.EndpointsConfig[spec.Network] = &network.EndpointSettings{
			Aliases: []string{string(spec.Service)},
		}
	}

	return cCfg, hCfg, nCfg, nil
}
