// Package cli drives containers through the docker command line instead of
// the Engine API.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/ethnode/models"
	"github.com/ezenkico/deploy-commander/ethnode/services"
	"github.com/ezenkico/deploy-commander/ethnode/services/compiler"
)

type Engine struct {
	Binary string
	Stdout io.Writer
	Stderr io.Writer

	log zerolog.Logger

	mu    sync.Mutex
	procs map[string]*process
}

type process struct {
	done chan struct{}
	err  error
}

func New(binary string, log zerolog.Logger) *Engine {
	if binary == "" {
		binary = "docker"
	}
	return &Engine{
		Binary: binary,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		log:    log,
		procs:  map[string]*process{},
	}
}

// output runs a short docker command and returns its combined output.
func (e *Engine) output(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	e.log.Debug().Str("command", models.LaunchCommand(append([]string{e.Binary}, args...)).String()).Msg("docker")
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("%s %s: %w: %s", e.Binary, args[0], err, strings.TrimSpace(out.String()))
	}
	return out.Bytes(), nil
}

func notFound(out []byte) bool {
	s := strings.ToLower(string(out))
	return strings.Contains(s, "no such") || strings.Contains(s, "not found")
}

// prepare makes sure the stack network exists and no stale container holds
// the name.
func (e *Engine) prepare(ctx context.Context, spec models.ServiceSpec) error {
	if spec.Network != "" {
		if _, err := e.output(ctx, "network", "inspect", spec.Network); err != nil {
			args := []string{"network", "create"}
			for _, label := range []string{services.LabelProject, services.LabelRun} {
				if v, ok := spec.Labels[label]; ok {
					args = append(args, "--label", label+"="+v)
				}
			}
			args = append(args, spec.Network)
			if out, err := e.output(ctx, args...); err != nil && !strings.Contains(string(out), "already exists") {
				return err
			}
		}
	}
	return e.Remove(ctx, spec.Name)
}

func startError(spec models.ServiceSpec, err error) error {
	return &models.ProcessStartError{Service: spec.Service, Name: spec.Name, Err: err}
}

// Launch runs `docker run` attached in the background.
func (e *Engine) Launch(ctx context.Context, spec models.ServiceSpec) (models.RunHandle, error) {
	argv, err := compiler.Command(spec, e.Binary)
	if err != nil {
		return models.RunHandle{}, startError(spec, err)
	}
	if err := e.prepare(ctx, spec); err != nil {
		return models.RunHandle{}, startError(spec, err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	e.log.Info().Str("command", argv.String()).Msg("docker run")
	if err := cmd.Start(); err != nil {
		return models.RunHandle{}, startError(spec, err)
	}

	proc := &process{done: make(chan struct{})}
	go func() {
		proc.err = cmd.Wait()
		close(proc.done)
	}()

	e.mu.Lock()
	e.procs[spec.Name] = proc
	e.mu.Unlock()

	return models.RunHandle{Service: spec.Service, Name: spec.Name, ID: spec.Name, TTY: spec.TTY}, nil
}

// Wait returns the exit status of the `docker run` process, which is the
// container's own status.
func (e *Engine) Wait(ctx context.Context, handle models.RunHandle) (int64, error) {
	e.mu.Lock()
	proc, ok := e.procs[handle.Name]
	e.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("container %q was not launched by this engine", handle.Name)
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-proc.done:
	}

	e.mu.Lock()
	delete(e.procs, handle.Name)
	e.mu.Unlock()

	return exitCode(proc.err)
}

func exitCode(err error) (int64, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return int64(exitErr.ExitCode()), nil
	}
	return 0, err
}

// RunOnce runs `docker run` in the foreground and captures its output.
func (e *Engine) RunOnce(ctx context.Context, spec models.ServiceSpec) (models.StepResult, error) {
	argv, err := compiler.Command(spec, e.Binary)
	if err != nil {
		return models.StepResult{}, startError(spec, err)
	}
	if err := e.prepare(ctx, spec); err != nil {
		return models.StepResult{}, startError(spec, err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	e.log.Debug().Str("command", argv.String()).Msg("docker run")
	if err := cmd.Start(); err != nil {
		return models.StepResult{}, startError(spec, err)
	}

	code, err := exitCode(cmd.Wait())
	if ctx.Err() != nil {
		return models.StepResult{}, ctx.Err()
	}
	if err != nil {
		return models.StepResult{}, err
	}
	return models.StepResult{ExitCode: code, Output: out.Bytes()}, nil
}

func (e *Engine) Stop(ctx context.Context, name string) error {
	if out, err := e.output(ctx, "container", "stop", name); err != nil && !notFound(out) {
		return err
	}
	return nil
}

func (e *Engine) Remove(ctx context.Context, name string) error {
	if out, err := e.output(ctx, "container", "rm", "-f", name); err != nil && !notFound(out) {
		return err
	}
	return nil
}

func (e *Engine) RemoveNetwork(ctx context.Context, name string) error {
	if out, err := e.output(ctx, "network", "rm", name); err != nil && !notFound(out) {
		return err
	}
	return nil
}

// Sweep removes containers and networks labelled with the project.
func (e *Engine) Sweep(ctx context.Context, project string) error {
	filter := "label=" + services.LabelProject + "=" + project

	out, err := e.output(ctx, "container", "ls", "-a", "-q", "--filter", filter)
	if err != nil {
		return err
	}
	for _, id := range strings.Fields(string(out)) {
		e.log.Warn().Str("container", id).Str("project", project).Msg("SWEEP CONTAINER")
		if err := e.Remove(ctx, id); err != nil {
			return err
		}
	}

	out, err = e.output(ctx, "network", "ls", "-q", "--filter", filter)
	if err != nil {
		return err
	}
	for _, id := range strings.Fields(string(out)) {
		if err := e.RemoveNetwork(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
