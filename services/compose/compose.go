// Package compose renders compiled service specs as a compose-style document
// that an existing orchestration tool can run instead of this program.
package compose

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ezenkico/deploy-commander/ethnode/models"
	"github.com/ezenkico/deploy-commander/ethnode/services"
)

type Document struct {
	Name     string             `json:"name" yaml:"name"`
	Services map[string]Service `json:"services" yaml:"services"`
	Networks map[string]Network `json:"networks,omitempty" yaml:"networks,omitempty"`
}

type Service struct {
	ContainerName string            `json:"container_name" yaml:"container_name"`
	Image         string            `json:"image" yaml:"image"`
	Entrypoint    []string          `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	Command       []string          `json:"command,omitempty" yaml:"command,omitempty"`
	TTY           bool              `json:"tty" yaml:"tty"`
	WorkingDir    string            `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	DependsOn     []string          `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Expose        []string          `json:"expose,omitempty" yaml:"expose,omitempty"`
	Ports         []Port            `json:"ports,omitempty" yaml:"ports,omitempty"`
	Volumes       []Volume          `json:"volumes,omitempty" yaml:"volumes,omitempty"`
	Networks      []string          `json:"networks,omitempty" yaml:"networks,omitempty"`
	Labels        map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

type Port struct {
	Target    int    `json:"target" yaml:"target"`
	Published string `json:"published" yaml:"published"`
	HostIP    string `json:"host_ip" yaml:"host_ip"`
	Protocol  string `json:"protocol" yaml:"protocol"`
	Mode      string `json:"mode" yaml:"mode"`
}

type Volume struct {
	Type     string `json:"type" yaml:"type"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
	Target   string `json:"target" yaml:"target"`
	ReadOnly bool   `json:"read_only,omitempty" yaml:"read_only,omitempty"`
	Tmpfs    *Tmpfs `json:"tmpfs,omitempty" yaml:"tmpfs,omitempty"`
}

type Tmpfs struct {
	Size string `json:"size,omitempty" yaml:"size,omitempty"`
	Mode uint32 `json:"mode,omitempty" yaml:"mode,omitempty"`
}

type Network struct {
	Name   string            `json:"name" yaml:"name"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Build converts the specs of one project. One-shot steps are left out.
func Build(project string, specs []models.ServiceSpec) (Document, error) {
	if err := services.CheckDependsOnServicesExist(specs); err != nil {
		return Document{}, err
	}

	doc := Document{
		Name:     services.Label(project),
		Services: map[string]Service{},
		Networks: map[string]Network{},
	}

	for _, spec := range specs {
		if spec.IsStep() {
			continue
		}
		key := string(spec.Service)
		if _, dup := doc.Services[key]; dup {
			return Document{}, fmt.Errorf("service %q compiled twice", key)
		}

		svc := Service{
			ContainerName: spec.Name,
			Image:         spec.Image,
			Entrypoint:    spec.Entrypoint,
			Command:       spec.Args,
			TTY:           spec.TTY,
			WorkingDir:    spec.WorkingDir,
			Labels:        spec.Labels,
		}
		for _, dep := range spec.DependsOn {
			svc.DependsOn = append(svc.DependsOn, string(dep))
		}

		for _, p := range spec.Ports {
			svc.Expose = append(svc.Expose, fmt.Sprintf("%d/%s", p.Port, p.TransportOrDefault()))
			hostIP := p.HostIP
			if hostIP == "" {
				hostIP = "127.0.0.1"
			}
			svc.Ports = append(svc.Ports, Port{
				Target:    p.Port,
				Published: fmt.Sprint(p.Published()),
				HostIP:    hostIP,
				Protocol:  p.TransportOrDefault(),
				Mode:      "host",
			})
		}

		for _, m := range spec.Mounts {
			v := Volume{Type: string(m.Type), Source: m.Source, Target: m.Target, ReadOnly: m.ReadOnly}
			if m.Type == models.MountTypeTmpfs && (m.Size != "" || m.Mode != 0) {
				v.Tmpfs = &Tmpfs{Size: m.Size, Mode: uint32(m.Mode)}
			}
			svc.Volumes = append(svc.Volumes, v)
		}

		if spec.Network != "" {
			svc.Networks = []string{spec.Network}
			doc.Networks[spec.Network] = Network{
				Name:   spec.Network,
				Labels: map[string]string{services.LabelProject: project},
			}
		}

		doc.Services[key] = svc
	}

	return doc, nil
}

func (d Document) EncodeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

func (d Document) EncodeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}

// WriteJSON writes the document to path, creating parent directories.
func (d Document) WriteJSON(path string) error {
	return write(path, d.EncodeJSON)
}

func (d Document) WriteYAML(path string) error {
	return write(path, d.EncodeYAML)
}

func write(path string, encode func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create compose dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create compose file: %w", err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
