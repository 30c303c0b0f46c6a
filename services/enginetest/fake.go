// Package enginetest provides an in-memory engine for tests.
package enginetest

import (
	"context"
	"sync"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

type Call struct {
	Op   string
	Name string
}

// Fake records every call. Launched containers run until Exit is called.
type Fake struct {
	mu    sync.Mutex
	calls []Call
	exits map[string]chan int64

	LaunchErr map[string]error
	StopErr   map[string]error
	RemoveErr map[string]error

	// OnLaunch runs after a successful launch, e.g. to write artifacts.
	OnLaunch func(spec models.ServiceSpec)

	// RunOnce result; nil means success with no output.
	OnRunOnce func(spec models.ServiceSpec) (models.StepResult, error)
}

func New() *Fake {
	return &Fake{
		exits:     map[string]chan int64{},
		LaunchErr: map[string]error{},
		StopErr:   map[string]error{},
		RemoveErr: map[string]error{},
	}
}

func (f *Fake) record(op, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Name: name})
}

func (f *Fake) exitChan(name string) chan int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.exits[name]
	if !ok {
		ch = make(chan int64, 1)
		f.exits[name] = ch
	}
	return ch
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) Count(op, name string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op && c.Name == name {
			n++
		}
	}
	return n
}

// Exit makes the named container exit with code.
func (f *Fake) Exit(name string, code int64) {
	f.exitChan(name) <- code
}

func (f *Fake) Launch(ctx context.Context, spec models.ServiceSpec) (models.RunHandle, error) {
	f.record("launch", spec.Name)
	if err := f.LaunchErr[spec.Name]; err != nil {
		return models.RunHandle{}, err
	}
	f.exitChan(spec.Name)
	if f.OnLaunch != nil {
		f.OnLaunch(spec)
	}
	return models.RunHandle{Service: spec.Service, Name: spec.Name, ID: "id-" + spec.Name, TTY: spec.TTY}, nil
}

func (f *Fake) Wait(ctx context.Context, handle models.RunHandle) (int64, error) {
	f.record("wait", handle.Name)
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case code := <-f.exitChan(handle.Name):
		return code, nil
	}
}

func (f *Fake) RunOnce(ctx context.Context, spec models.ServiceSpec) (models.StepResult, error) {
	f.record("run", spec.Name)
	if f.OnRunOnce == nil {
		return models.StepResult{}, nil
	}
	return f.OnRunOnce(spec)
}

func (f *Fake) Stop(ctx context.Context, name string) error {
	f.record("stop", name)
	return f.StopErr[name]
}

func (f *Fake) Remove(ctx context.Context, name string) error {
	f.record("remove", name)
	return f.RemoveErr[name]
}

func (f *Fake) RemoveNetwork(ctx context.Context, name string) error {
	f.record("network-remove", name)
	return nil
}

func (f *Fake) Sweep(ctx context.Context, project string) error {
	f.record("sweep", project)
	return nil
}
