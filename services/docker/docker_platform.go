package docker

import (
	"io"
	"os"
	"sync"

	"github.com/moby/moby/client"
	"github.com/rs/zerolog"
)

// DockerPlatform implements interfaces.Engine for plain Docker (Engine API).
type DockerPlatform struct {
	client *client.Client
	log    zerolog.Logger

	stdout io.Writer
	stderr io.Writer

	mu   sync.Mutex
	logs map[string]chan error // container id -> log stream result
}

// NewDockerPlatform initializes the Docker platform using environment variables
// (e.g. DOCKER_HOST) and API version negotiation.
func NewDockerPlatform(log zerolog.Logger) (*DockerPlatform, error) {
	c, err := client.New(
		client.FromEnv,
	)
	if err != nil {
		return nil, err
	}

	return &DockerPlatform{
		client: c,
		log:    log,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logs:   map[string]chan error{},
	}, nil
}

func (p *DockerPlatform) Close() error {
	return p.client.Close()
}
