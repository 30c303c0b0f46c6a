package docker

import (
	"fmt"
	"os"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

// CheckSpec rejects a spec without an image or with a bind source missing on
// the host, before anything is created.
func CheckSpec(spec models.ServiceSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("service %q has no container name", spec.Service)
	}
	if spec.Image == "" {
		return fmt.Errorf("service %q has no image", spec.Name)
	}

	for _, m := range spec.Mounts {
		if m.Type != models.MountTypeBind {
			continue
		}
		if _, err := os.Stat(m.Source); err != nil {
			return fmt.Errorf("service %q bind source %q: %w", spec.Name, m.Source, err)
		}
	}

	return nil
}
