package readiness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

func testGate() Gate {
	return Gate{Interval: 10 * time.Millisecond, Log: zerolog.Nop()}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestAwaitReturnsLastListedEntry(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		touch(t, filepath.Join(dir, name))
	}

	got, err := testGate().Await(context.Background(), dir)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if filepath.Base(got) != "c" {
		t.Fatalf("Await = %q, want entry c", got)
	}
}

func TestAwaitFileIsItsOwnArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwtsecret")
	touch(t, path)

	got, err := testGate().Await(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Fatalf("Await = %q, want %q", got, path)
	}
}

func TestNewestIgnoresEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwtsecret")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok := Newest(path); ok {
		t.Fatal("empty file reported ready")
	}

	touch(t, path)
	if got, ok := Newest(path); !ok || got != path {
		t.Fatalf("Newest = %q, %v", got, ok)
	}
}

func TestAwaitBlocksUntilEntryAppears(t *testing.T) {
	dir := t.TempDir()
	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "UTC--account"), []byte("{}"), 0o600)
	}()

	got, err := testGate().Await(context.Background(), dir)
	<-done
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if filepath.Base(got) != "UTC--account" {
		t.Fatalf("Await = %q", got)
	}
}

func TestAwaitMissingPathAppearsLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geth", "jwtsecret")
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.MkdirAll(filepath.Dir(path), 0o755)
		_ = os.WriteFile(path, []byte("secret"), 0o600)
	}()

	got, err := testGate().Await(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Fatalf("Await = %q", got)
	}
}

func TestAwaitTimesOutAfterMaxAttempts(t *testing.T) {
	g := testGate()
	g.MaxAttempts = 3

	start := time.Now()
	_, err := g.Await(context.Background(), t.TempDir())

	var timeout *models.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if timeout.Attempts != 3 {
		t.Fatalf("attempts = %d", timeout.Attempts)
	}
	if !errors.Is(err, models.ErrArtifactNotFound) {
		t.Fatal("TimeoutError should match ErrArtifactNotFound")
	}
	// two sleeps between three polls
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("returned after %s", elapsed)
	}
}

func TestAwaitStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := testGate().Await(ctx, t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	g := Gate{Interval: time.Second, MaxInterval: 3 * time.Second, Backoff: 2}

	d := g.Interval
	seen := []time.Duration{}
	for i := 0; i < 4; i++ {
		d = g.next(d)
		seen = append(seen, d)
	}
	want := []time.Duration{2 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("backoff = %v, want %v", seen, want)
		}
	}

	fixed := Gate{Interval: time.Second}
	if fixed.next(time.Second) != time.Second {
		t.Fatal("zero backoff should keep the interval")
	}
}
