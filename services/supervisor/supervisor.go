// Package supervisor owns every container started for a stack and guarantees
// that each one is stopped and removed exactly once.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/ethnode/interfaces"
	"github.com/ezenkico/deploy-commander/ethnode/models"
	"github.com/ezenkico/deploy-commander/ethnode/services/logging"
)

type tracked struct {
	service models.ServiceName
	name    string
}

type Supervisor struct {
	engine interfaces.Engine
	log    zerolog.Logger

	mu       sync.Mutex
	services []tracked
	networks []string
	once     sync.Once
}

func New(engine interfaces.Engine, log zerolog.Logger) *Supervisor {
	return &Supervisor{engine: engine, log: log}
}

func (s *Supervisor) track(spec models.ServiceSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.ContainsFunc(s.services, func(t tracked) bool { return t.name == spec.Name }) {
		s.services = append(s.services, tracked{service: spec.Service, name: spec.Name})
	}
	if spec.Network != "" && !slices.Contains(s.networks, spec.Network) {
		s.networks = append(s.networks, spec.Network)
	}
}

func (s *Supervisor) untrack(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = slices.DeleteFunc(s.services, func(t tracked) bool { return t.name == name })
}

// Tracked returns the container names awaiting cleanup, in launch order.
func (s *Supervisor) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.services))
	for _, t := range s.services {
		names = append(names, t.name)
	}
	return names
}

// Launch starts a long-running service. The name is tracked before the engine
// is called so that a half-created container is still cleaned up.
func (s *Supervisor) Launch(ctx context.Context, spec models.ServiceSpec) (models.RunHandle, error) {
	s.track(spec)
	logging.Event(s.log, "start", spec.Service, spec.Name)

	handle, err := s.engine.Launch(ctx, spec)
	if err != nil {
		return models.RunHandle{}, asStartError(spec, err)
	}
	return handle, nil
}

// Wait blocks until the container exits. A non-zero status is returned, not
// raised.
func (s *Supervisor) Wait(ctx context.Context, handle models.RunHandle) (int64, error) {
	code, err := s.engine.Wait(ctx, handle)
	if err != nil {
		return 0, err
	}
	logging.Event(s.log, "exit", handle.Service, fmt.Sprintf("%s status=%d", handle.Name, code))
	return code, nil
}

// RunStep runs a one-shot container and always stops and removes it
// afterwards, whatever the outcome.
func (s *Supervisor) RunStep(ctx context.Context, spec models.ServiceSpec) (models.StepResult, error) {
	s.track(spec)
	defer func() {
		s.release(context.WithoutCancel(ctx), tracked{service: spec.Service, name: spec.Name})
		s.untrack(spec.Name)
	}()

	res, err := s.engine.RunOnce(ctx, spec)
	if err != nil {
		return models.StepResult{}, asStartError(spec, err)
	}
	return res, nil
}

// CleanupAll stops then removes every tracked container, newest first, then
// removes the stack networks. Failures are logged and never returned; only
// the first call does any work.
func (s *Supervisor) CleanupAll(ctx context.Context) {
	s.once.Do(func() {
		s.mu.Lock()
		services := slices.Clone(s.services)
		networks := slices.Clone(s.networks)
		s.mu.Unlock()

		s.log.Warn().Int("containers", len(services)).Msg("CLEANUP")

		for i := len(services) - 1; i >= 0; i-- {
			s.release(ctx, services[i])
		}
		for _, network := range networks {
			if err := s.engine.RemoveNetwork(ctx, network); err != nil {
				s.log.Warn().Err(err).Str("network", network).Msg("CLEANUP NETWORK - error not handled")
			}
		}

		s.mu.Lock()
		s.services = nil
		s.networks = nil
		s.mu.Unlock()
	})
}

func (s *Supervisor) release(ctx context.Context, t tracked) {
	s.log.Info().Str("service", string(t.service)).Str("container", t.name).Msg("CLEANUP CONTAINER")
	if err := s.engine.Stop(ctx, t.name); err != nil {
		s.log.Warn().Err(err).Str("container", t.name).Msg("CLEANUP CONTAINER - stop failed")
	}
	if err := s.engine.Remove(ctx, t.name); err != nil {
		s.log.Warn().Err(err).Str("container", t.name).Msg("CLEANUP CONTAINER - remove failed")
	}
}

func asStartError(spec models.ServiceSpec, err error) error {
	var startErr *models.ProcessStartError
	if errors.As(err, &startErr) {
		return err
	}
	// cancellation is not a start failure
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &models.ProcessStartError{Service: spec.Service, Name: spec.Name, Err: err}
}
