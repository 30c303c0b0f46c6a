package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

const (
	EnvMasterPassword = "ETHNODE_MASTER_PASSWORD"
	EnvBaseDir        = "ETHNODE_BASE_DIR"
	EnvProject        = "ETHNODE_PROJECT"
	EnvEngine         = "ETHNODE_ENGINE"
	EnvMinLength      = "ETHNODE_PASSWORD_MIN_LENGTH"
)

const defaultRulesJS = `function OnSignerStartup(info) {}

function ApproveListing() {
	return "Approve"
}
`

func Default() models.Configuration {
	return models.Configuration{
		BaseDir:      ".ethnode",
		Project:      "ethnode",
		Engine:       "api",
		DockerBinary: "docker",
		Wait: models.WaitConfig{
			Interval:    2 * time.Second,
			MaxInterval: 30 * time.Second,
			MaxAttempts: 150,
			Backoff:     1,
		},
		Policy: models.PasswordPolicy{MinLength: 10},
		Signer: models.SignerConfig{
			Name:     "signer",
			Image:    "ethereum/client-go:alltools-stable",
			Binary:   "clef",
			Shell:    "sh",
			ChainID:  11155111,
			NoUSB:    true,
			LightKDF: true,
			LogLevel: 3,
			HTTP: models.SignerHTTPConfig{
				Addr:   "0.0.0.0",
				Port:   "8550",
				VHosts: "localhost",
			},
			RulesJS:  defaultRulesJS,
			LookupDB: "{}",
		},
		Execution: models.ExecutionConfig{
			Name:    "execution",
			Image:   "ethereum/client-go:stable",
			Network: "sepolia",
			P2PPort: 30303,
			HTTP: models.EndpointConfig{
				Addr:    "0.0.0.0",
				Port:    "8545",
				API:     []string{"eth", "net", "web3"},
				Origins: []string{"localhost"},
			},
			WS: models.EndpointConfig{
				Addr:    "0.0.0.0",
				Port:    "8546",
				API:     []string{"eth", "net", "web3"},
				Origins: []string{"localhost"},
			},
			AuthRPC: models.AuthRPCConfig{
				Addr:   "0.0.0.0",
				Port:   "8551",
				VHosts: []string{"*"},
			},
		},
		Consensus: models.ConsensusConfig{
			Name:              "consensus",
			Image:             "sigp/lighthouse:latest",
			Binary:            "lighthouse bn",
			Network:           "sepolia",
			CheckpointSyncURL: "https://sepolia.beaconstate.info",
			HTTP: models.ConsensusHTTPConfig{
				Address:     "0.0.0.0",
				Port:        "5052",
				AllowOrigin: "*",
			},
		},
	}
}

type waitFile struct {
	Wait struct {
		Interval    string `toml:"interval"`
		MaxInterval string `toml:"max_interval"`
	} `toml:"wait"`
}

// Load returns the defaults overridden by the keys defined in the TOML file at
// path. An empty path yields the defaults.
func Load(path string) (models.Configuration, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return models.Configuration{}, fmt.Errorf("load config %q: %w", path, err)
	}

	var raw waitFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return models.Configuration{}, fmt.Errorf("load config %q: %w", path, err)
	}
	if meta.IsDefined("wait", "interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Wait.Interval))
		if err != nil {
			return models.Configuration{}, fmt.Errorf("parse wait.interval: %w", err)
		}
		cfg.Wait.Interval = d
	}
	if meta.IsDefined("wait", "max_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Wait.MaxInterval))
		if err != nil {
			return models.Configuration{}, fmt.Errorf("parse wait.max_interval: %w", err)
		}
		cfg.Wait.MaxInterval = d
	}

	return cfg, nil
}

// ApplyEnv loads the given .env files (missing files are ignored) and applies
// the environment overrides. Secrets only ever come from the environment.
func ApplyEnv(cfg *models.Configuration, files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env file %q: %w", f, err)
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvBaseDir)); v != "" {
		cfg.BaseDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvProject)); v != "" {
		cfg.Project = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvEngine)); v != "" {
		cfg.Engine = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMinLength)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvMinLength, err)
		}
		cfg.Policy.MinLength = n
	}
	if v, ok := os.LookupEnv(EnvMasterPassword); ok {
		cfg.Signer.MasterPassword = v
	}

	return nil
}

// Finalize resolves the base directory to an absolute path (bind mounts
// require one) and checks the values every component relies on.
func Finalize(cfg *models.Configuration) error {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return errors.New("base_dir is required")
	}
	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return fmt.Errorf("resolve base_dir %q: %w", cfg.BaseDir, err)
	}
	cfg.BaseDir = abs

	if strings.TrimSpace(cfg.Project) == "" {
		return errors.New("project is required")
	}
	switch cfg.Engine {
	case "api", "cli":
	default:
		return fmt.Errorf("%q is not a valid engine (use api or cli)", cfg.Engine)
	}
	if cfg.Signer.Image == "" || cfg.Execution.Image == "" {
		return errors.New("signer and execution images are required")
	}
	if cfg.Consensus.Enable && cfg.Consensus.Image == "" {
		return errors.New("consensus image is required when consensus is enabled")
	}
	if cfg.Policy.MinLength < 1 {
		return fmt.Errorf("policy.min_length must be positive, got %d", cfg.Policy.MinLength)
	}
	if cfg.Wait.Interval <= 0 {
		return fmt.Errorf("wait.interval must be positive, got %s", cfg.Wait.Interval)
	}

	return nil
}
