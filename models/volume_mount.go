package models

import "os"

type MountType string

const (
	MountTypeBind   MountType = "bind"
	MountTypeVolume MountType = "volume"
	MountTypeTmpfs  MountType = "tmpfs"
)

type MountSpec struct {
	Type MountType `json:"type"`

	// Host path (bind) or volume name; empty for tmpfs
	Source string `json:"source,omitempty"`

	// Path inside the container
	Target string `json:"target"`

	ReadOnly bool `json:"read_only,omitempty"`

	// tmpfs only: human size ("1gb") and permission bits
	Size string      `json:"size,omitempty"`
	Mode os.FileMode `json:"mode,omitempty"`
}
