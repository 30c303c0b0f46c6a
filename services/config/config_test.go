package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Project != "ethnode" || cfg.Policy.MinLength != 10 {
		t.Fatalf("unexpected defaults: project=%q min=%d", cfg.Project, cfg.Policy.MinLength)
	}
	if cfg.Wait.Interval != 2*time.Second {
		t.Fatalf("wait interval = %s, want 2s", cfg.Wait.Interval)
	}
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ethnode.toml", `
project = "devnet"

[wait]
interval = "250ms"
max_attempts = 3

[execution]
network = "holesky"

[execution.http]
enable = true
port = "9545"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Project != "devnet" {
		t.Fatalf("project = %q", cfg.Project)
	}
	if cfg.Wait.Interval != 250*time.Millisecond || cfg.Wait.MaxAttempts != 3 {
		t.Fatalf("wait = %+v", cfg.Wait)
	}
	if cfg.Wait.MaxInterval != 30*time.Second {
		t.Fatalf("max interval should keep its default, got %s", cfg.Wait.MaxInterval)
	}
	if !cfg.Execution.HTTP.Enable || cfg.Execution.HTTP.Port != "9545" {
		t.Fatalf("execution http = %+v", cfg.Execution.HTTP)
	}
	if cfg.Execution.HTTP.Addr != "0.0.0.0" {
		t.Fatalf("execution http addr should keep its default, got %q", cfg.Execution.HTTP.Addr)
	}
	if cfg.Execution.Network != "holesky" || cfg.Signer.Image == "" {
		t.Fatalf("unexpected config: %+v", cfg.Execution)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.toml", "[wait]\ninterval = \"soon\"\n")

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "wait.interval") {
		t.Fatalf("expected wait.interval error, got %v", err)
	}
}

func TestApplyEnvReadsDotEnvAndIgnoresMissingFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", EnvMasterPassword+"=from-dot-env-secret\n"+EnvMinLength+"=12\n")

	t.Setenv(EnvProject, "override")
	// godotenv never overrides variables that are already set; t.Setenv
	// restores both once the test ends.
	for _, key := range []string{EnvMasterPassword, EnvMinLength} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Default()
	if err := ApplyEnv(&cfg, filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Signer.MasterPassword != "from-dot-env-secret" {
		t.Fatalf("master password = %q", cfg.Signer.MasterPassword)
	}
	if cfg.Policy.MinLength != 12 || cfg.Project != "override" {
		t.Fatalf("unexpected overrides: min=%d project=%q", cfg.Policy.MinLength, cfg.Project)
	}
}

func TestFinalizeResolvesBaseDirAndValidates(t *testing.T) {
	cfg := Default()
	cfg.BaseDir = "relative/stack"
	if err := Finalize(&cfg); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !filepath.IsAbs(cfg.BaseDir) {
		t.Fatalf("base dir %q is not absolute", cfg.BaseDir)
	}

	cfg = Default()
	cfg.Engine = "podman"
	if err := Finalize(&cfg); err == nil {
		t.Fatal("expected invalid engine error")
	}

	cfg = Default()
	cfg.Consensus.Enable = true
	cfg.Consensus.Image = ""
	if err := Finalize(&cfg); err == nil {
		t.Fatal("expected missing consensus image error")
	}
}
