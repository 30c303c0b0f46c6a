package supervisor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/ethnode/models"
	"github.com/ezenkico/deploy-commander/ethnode/services/enginetest"
)

func spec(service models.ServiceName, name string) models.ServiceSpec {
	return models.ServiceSpec{Service: service, Role: models.ServiceRoleService, Name: name, Image: "img", Network: "stack-net"}
}

func TestCleanupAllStopsAndRemovesInReverseOrder(t *testing.T) {
	engine := enginetest.New()
	s := New(engine, zerolog.Nop())
	ctx := context.Background()

	for _, sp := range []models.ServiceSpec{spec(models.ServiceSigner, "signer"), spec(models.ServiceExecution, "execution")} {
		if _, err := s.Launch(ctx, sp); err != nil {
			t.Fatalf("Launch: %v", err)
		}
	}

	s.CleanupAll(ctx)

	want := []enginetest.Call{
		{Op: "launch", Name: "signer"},
		{Op: "launch", Name: "execution"},
		{Op: "stop", Name: "execution"},
		{Op: "remove", Name: "execution"},
		{Op: "stop", Name: "signer"},
		{Op: "remove", Name: "signer"},
		{Op: "network-remove", Name: "stack-net"},
	}
	got := engine.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCleanupAllRunsOnce(t *testing.T) {
	engine := enginetest.New()
	s := New(engine, zerolog.Nop())
	ctx := context.Background()

	if _, err := s.Launch(ctx, spec(models.ServiceExecution, "execution")); err != nil {
		t.Fatal(err)
	}
	s.CleanupAll(ctx)
	s.CleanupAll(ctx)

	if n := engine.Count("stop", "execution"); n != 1 {
		t.Fatalf("stop called %d times", n)
	}
	if len(s.Tracked()) != 0 {
		t.Fatalf("still tracked: %v", s.Tracked())
	}
}

func TestCleanupFailureDoesNotBlockOthers(t *testing.T) {
	engine := enginetest.New()
	engine.StopErr["execution"] = errors.New("daemon unreachable")
	engine.RemoveErr["execution"] = errors.New("daemon unreachable")
	s := New(engine, zerolog.Nop())
	ctx := context.Background()

	for _, sp := range []models.ServiceSpec{spec(models.ServiceSigner, "signer"), spec(models.ServiceExecution, "execution")} {
		if _, err := s.Launch(ctx, sp); err != nil {
			t.Fatal(err)
		}
	}
	s.CleanupAll(ctx)

	if engine.Count("stop", "signer") != 1 || engine.Count("remove", "signer") != 1 {
		t.Fatalf("signer was not cleaned: %+v", engine.Calls())
	}
}

func TestFailedLaunchIsStillCleaned(t *testing.T) {
	engine := enginetest.New()
	engine.LaunchErr["execution"] = errors.New("no such image")
	s := New(engine, zerolog.Nop())
	ctx := context.Background()

	_, err := s.Launch(ctx, spec(models.ServiceExecution, "execution"))
	var startErr *models.ProcessStartError
	if !errors.As(err, &startErr) {
		t.Fatalf("expected ProcessStartError, got %v", err)
	}
	if startErr.Service != models.ServiceExecution {
		t.Fatalf("service = %q", startErr.Service)
	}

	s.CleanupAll(ctx)
	if engine.Count("remove", "execution") != 1 {
		t.Fatalf("half-created container not removed: %+v", engine.Calls())
	}
}

func TestWaitReturnsNonZeroStatusWithoutError(t *testing.T) {
	engine := enginetest.New()
	s := New(engine, zerolog.Nop())
	ctx := context.Background()

	h, err := s.Launch(ctx, spec(models.ServiceExecution, "execution"))
	if err != nil {
		t.Fatal(err)
	}
	engine.Exit("execution", 3)

	code, err := s.Wait(ctx, h)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 3 {
		t.Fatalf("code = %d", code)
	}
}

func TestRunStepAlwaysReleasesContainer(t *testing.T) {
	engine := enginetest.New()
	engine.OnRunOnce = func(models.ServiceSpec) (models.StepResult, error) {
		return models.StepResult{ExitCode: 1, Output: []byte("bad")}, nil
	}
	s := New(engine, zerolog.Nop())

	step := spec(models.ServiceSigner, "signer")
	step.Role = models.ServiceRoleStep
	res, err := s.RunStep(context.Background(), step)
	if err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	if res.ExitCode != 1 {
		t.Fatalf("exit = %d", res.ExitCode)
	}
	if engine.Count("stop", "signer") != 1 || engine.Count("remove", "signer") != 1 {
		t.Fatalf("step container not released: %+v", engine.Calls())
	}
	if len(s.Tracked()) != 0 {
		t.Fatalf("step still tracked: %v", s.Tracked())
	}
}
