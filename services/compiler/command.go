package compiler

import (
	"sort"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

// Command flattens a spec into the `docker run` argument vector. Labels are
// emitted in key order so the vector is reproducible.
func Command(spec models.ServiceSpec, binary string) (models.LaunchCommand, error) {
	mounts, err := Mounts(spec.Mounts)
	if err != nil {
		return nil, err
	}

	cmd := models.LaunchCommand{binary, "run", "--name", spec.Name}
	if spec.TTY {
		cmd = append(cmd, "-t")
	}

	keys := make([]string, 0, len(spec.Labels))
	for k := range spec.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd = append(cmd, "--label", k+"="+spec.Labels[k])
	}

	if spec.Network != "" {
		cmd = append(cmd, "--network", spec.Network)
	}
	for _, p := range spec.Ports {
		cmd = append(cmd, "-p", p.String())
	}
	cmd = append(cmd, mounts...)
	if spec.WorkingDir != "" {
		cmd = append(cmd, "-w", spec.WorkingDir)
	}

	// --entrypoint takes a single executable; the rest of the entrypoint
	// leads the container arguments.
	rest := []string{}
	if len(spec.Entrypoint) > 0 {
		cmd = append(cmd, "--entrypoint", spec.Entrypoint[0])
		rest = spec.Entrypoint[1:]
	}

	cmd = append(cmd, spec.Image)
	cmd = append(cmd, rest...)
	cmd = append(cmd, spec.Args...)

	return cmd, nil
}
