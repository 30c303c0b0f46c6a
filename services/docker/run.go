package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/moby/moby/client"

	"github.com/ezenkico/deploy-commander/ethnode/models"
	"github.com/ezenkico/deploy-commander/ethnode/services"
)

// Launch creates and starts a long-running container and streams its logs to
// the console until it exits.
func (p *DockerPlatform) Launch(ctx context.Context, spec models.ServiceSpec) (models.RunHandle, error) {
	id, err := p.create(ctx, spec)
	if err != nil {
		return models.RunHandle{}, err
	}

	handle := models.RunHandle{Service: spec.Service, Name: spec.Name, ID: id, TTY: spec.TTY}
	if err := p.follow(ctx, handle, p.stdout, p.stderr); err != nil {
		return handle, err
	}
	return handle, nil
}

// follow streams the container logs in the background.
func (p *DockerPlatform) follow(ctx context.Context, handle models.RunHandle, stdout, stderr io.Writer) error {
	rc, err := p.client.ContainerLogs(ctx, handle.ID, client.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Timestamps: false,
		Since:      "0",
	})
	if err != nil {
		return fmt.Errorf("logs container %q: %w", handle.Name, err)
	}

	done := make(chan error, 1)
	p.mu.Lock()
	p.logs[handle.ID] = done
	p.mu.Unlock()

	go func() {
		defer rc.Close()
		if handle.TTY {
			// a tty stream is not multiplexed
			_, err := io.Copy(stdout, rc)
			done <- err
			return
		}
		done <- services.DemuxDockerLogs(stdout, stderr, rc)
	}()
	return nil
}

// Wait blocks until the container exits and its log stream is drained.
func (p *DockerPlatform) Wait(ctx context.Context, handle models.RunHandle) (int64, error) {
	waitBodyC := p.client.ContainerWait(ctx, handle.ID, client.ContainerWaitOptions{})
	var statusCode int64

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case err := <-waitBodyC.Error:
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, fmt.Errorf("wait container %q: %w", handle.Name, err)
		}
	case res := <-waitBodyC.Result:
		statusCode = res.StatusCode
	}

	p.mu.Lock()
	done, ok := p.logs[handle.ID]
	delete(p.logs, handle.ID)
	p.mu.Unlock()

	if ok {
		select {
		case err := <-done:
			if err != nil {
				p.log.Warn().Err(err).Str("container", handle.Name).Msg("stream logs")
			}
		case <-ctx.Done():
			return statusCode, ctx.Err()
		}
	}
	return statusCode, nil
}

// RunOnce runs a one-shot container to completion and captures its output.
// The container is left for the caller to remove.
func (p *DockerPlatform) RunOnce(ctx context.Context, spec models.ServiceSpec) (models.StepResult, error) {
	id, err := p.create(ctx, spec)
	if err != nil {
		return models.StepResult{}, err
	}
	handle := models.RunHandle{Service: spec.Service, Name: spec.Name, ID: id, TTY: spec.TTY}

	var output bytes.Buffer
	if err := p.follow(ctx, handle, &output, &output); err != nil {
		return models.StepResult{}, err
	}

	code, err := p.Wait(ctx, handle)
	if err != nil {
		return models.StepResult{}, err
	}

	p.log.Debug().Str("container", spec.Name).Int64("status", code).Msg("step finished")
	return models.StepResult{ExitCode: code, Output: output.Bytes()}, nil
}
