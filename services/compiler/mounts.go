package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

// Mounts compiles mount descriptors into `--mount` flag pairs.
func Mounts(mounts []models.MountSpec) ([]string, error) {
	out := make([]string, 0, 2*len(mounts))
	for _, m := range mounts {
		value, err := MountFlag(m)
		if err != nil {
			return nil, err
		}
		out = append(out, "--mount", value)
	}
	return out, nil
}

// MountFlag renders one descriptor in docker `--mount` syntax.
func MountFlag(m models.MountSpec) (string, error) {
	if err := CheckMount(m); err != nil {
		return "", err
	}

	parts := []string{"type=" + string(m.Type)}
	if m.Source != "" {
		parts = append(parts, "source="+m.Source)
	}
	parts = append(parts, "target="+m.Target)
	if m.ReadOnly {
		parts = append(parts, "readonly")
	}

	if m.Type == models.MountTypeTmpfs {
		if m.Size != "" {
			size, err := TmpfsBytes(m.Size)
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("tmpfs-size=%d", size))
		}
		if m.Mode != 0 {
			parts = append(parts, fmt.Sprintf("tmpfs-mode=%o", uint32(m.Mode)))
		}
	}

	return strings.Join(parts, ","), nil
}

func CheckMount(m models.MountSpec) error {
	if strings.TrimSpace(m.Target) == "" {
		return fmt.Errorf("%s mount target is empty", m.Type)
	}
	if !filepath.IsAbs(m.Target) {
		return fmt.Errorf("%s mount target %q must be absolute", m.Type, m.Target)
	}

	switch m.Type {
	case models.MountTypeBind, models.MountTypeVolume:
		if strings.TrimSpace(m.Source) == "" {
			return fmt.Errorf("%s mount %q has no source", m.Type, m.Target)
		}
	case models.MountTypeTmpfs:
		if m.Source != "" {
			return fmt.Errorf("tmpfs mount %q cannot have a source", m.Target)
		}
	default:
		return fmt.Errorf("unknown mount type %q for %q", m.Type, m.Target)
	}

	return nil
}

// TmpfsBytes parses a human size such as "1gb" or "64m".
func TmpfsBytes(size string) (int64, error) {
	n, err := units.RAMInBytes(strings.TrimSpace(size))
	if err != nil {
		return 0, fmt.Errorf("invalid tmpfs size %q: %w", size, err)
	}
	return n, nil
}
