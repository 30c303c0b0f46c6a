package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

const fakeDocker = `#!/bin/sh
echo "$@" >> "%LOG%"
case "$1" in
  run)
    echo "hello from $3"
    case "$3" in
      failing) exit 3 ;;
    esac
    exit 0 ;;
  network)
    [ "$2" = inspect ] && exit 1
    [ "$2" = ls ] && echo "net1"
    exit 0 ;;
  container)
    [ "$2" = ls ] && { echo "abc"; echo "def"; }
    if [ "$2" = stop ] && [ "$3" = missing ]; then
      echo "Error response from daemon: No such container: missing" >&2
      exit 1
    fi
    exit 0 ;;
esac
`

func newEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script engine")
	}

	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	bin := filepath.Join(dir, "docker")
	script := strings.ReplaceAll(fakeDocker, "%LOG%", logPath)
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	e := New(bin, zerolog.Nop())
	e.Stdout = &bytes.Buffer{}
	e.Stderr = &bytes.Buffer{}
	return e, logPath
}

func calls(t *testing.T, logPath string) []string {
	t.Helper()
	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

func stepSpec(name string) models.ServiceSpec {
	return models.ServiceSpec{
		Service: models.ServiceSigner,
		Role:    models.ServiceRoleStep,
		Name:    name,
		Image:   "ethereum/client-go:alltools-stable",
		Args:    []string{"clef", "init"},
		Network: "ethnode-net",
		Labels:  map[string]string{"ethnode.project": "ethnode"},
	}
}

func TestRunOnceCapturesOutputAndStatus(t *testing.T) {
	e, logPath := newEngine(t)
	ctx := context.Background()

	res, err := e.RunOnce(ctx, stepSpec("failing"))
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit = %d", res.ExitCode)
	}
	if !strings.Contains(string(res.Output), "hello from failing") {
		t.Fatalf("output = %q", res.Output)
	}

	got := calls(t, logPath)
	want := []string{
		"network inspect ethnode-net",
		"network create --label ethnode.project=ethnode ethnode-net",
		"container rm -f failing",
	}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("call %d = %q, want %q", i, got[i], w)
		}
	}
	if !strings.HasPrefix(got[3], "run --name failing --label ethnode.project=ethnode --network ethnode-net") {
		t.Fatalf("run call = %q", got[3])
	}
}

func TestLaunchAndWait(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	spec := stepSpec("failing")
	spec.Role = models.ServiceRoleService
	h, err := e.Launch(ctx, spec)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	code, err := e.Wait(ctx, h)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 3 {
		t.Fatalf("code = %d", code)
	}
	if !strings.Contains(e.Stdout.(*bytes.Buffer).String(), "hello from failing") {
		t.Fatal("launch output not streamed")
	}
}

func TestMissingBinaryIsStartError(t *testing.T) {
	e := New("ethnode-no-such-docker", zerolog.Nop())

	_, err := e.RunOnce(context.Background(), stepSpec("step"))
	var startErr *models.ProcessStartError
	if !errors.As(err, &startErr) {
		t.Fatalf("expected ProcessStartError, got %v", err)
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("expected exec.ErrNotFound in chain, got %v", err)
	}
}

func TestStopMissingContainerIsNotAnError(t *testing.T) {
	e, _ := newEngine(t)
	if err := e.Stop(context.Background(), "missing"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSweepRemovesLabelledContainers(t *testing.T) {
	e, logPath := newEngine(t)
	if err := e.Sweep(context.Background(), "ethnode"); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	got := strings.Join(calls(t, logPath), "\n")
	for _, want := range []string{
		"container ls -a -q --filter label=ethnode.project=ethnode",
		"container rm -f abc",
		"container rm -f def",
		"network ls -q --filter label=ethnode.project=ethnode",
		"network rm net1",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing call %q in:\n%s", want, got)
		}
	}
}
