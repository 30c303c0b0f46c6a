package models

import "time"

type Configuration struct {
	BaseDir string `toml:"base_dir"`
	Project string `toml:"project"` // container / network name prefix
	Engine  string `toml:"engine"`  // api | cli

	// docker binary used by the cli engine
	DockerBinary string `toml:"docker_binary"`

	TTY bool `toml:"tty"`

	Wait   WaitConfig     `toml:"wait"`
	Policy PasswordPolicy `toml:"policy"`
	Output OutputConfig   `toml:"output"`

	Signer    SignerConfig    `toml:"signer"`
	Execution ExecutionConfig `toml:"execution"`
	Consensus ConsensusConfig `toml:"consensus"`
}

func (c Configuration) Layout() Layout {
	return NewLayout(c.BaseDir)
}

type WaitConfig struct {
	Interval    time.Duration `toml:"-"`
	MaxInterval time.Duration `toml:"-"`
	MaxAttempts int           `toml:"max_attempts"`
	Backoff     float64       `toml:"backoff"`
}

type PasswordPolicy struct {
	MinLength int `toml:"min_length"`
}

type OutputConfig struct {
	JSON string `toml:"json"`
	YAML string `toml:"yaml"`
}

type IPCConfig struct {
	Disable bool   `toml:"disable"`
	Path    string `toml:"path"`
}

type SignerConfig struct {
	Name   string `toml:"name"`
	Image  string `toml:"image"`
	Binary string `toml:"binary"`
	Shell  string `toml:"shell"`

	MasterPassword string `toml:"-"`

	ChainID  int64 `toml:"chain_id"`
	NoUSB    bool  `toml:"nousb"`
	LightKDF bool  `toml:"lightkdf"`
	LogLevel int   `toml:"log_level"`

	IPC  IPCConfig        `toml:"ipc"`
	HTTP SignerHTTPConfig `toml:"http"`

	// Contents written on first seed
	RulesJS  string `toml:"rules_js"`
	LookupDB string `toml:"lookup_db"`
}

type SignerHTTPConfig struct {
	Enable bool   `toml:"enable"`
	Addr   string `toml:"addr"`
	Port   string `toml:"port"`
	VHosts string `toml:"vhosts"`
}

type EndpointConfig struct {
	Enable  bool     `toml:"enable"`
	Addr    string   `toml:"addr"`
	Port    string   `toml:"port"`
	API     []string `toml:"api"`
	Origins []string `toml:"origins"` // corsdomain for http, origins for ws
}

type AuthRPCConfig struct {
	Addr   string   `toml:"addr"`
	Port   string   `toml:"port"`
	VHosts []string `toml:"vhosts"`
}

type ExecutionConfig struct {
	Name    string `toml:"name"`
	Image   string `toml:"image"`
	Network string `toml:"network"` // chain flag, e.g. "sepolia"
	P2PPort int    `toml:"p2p_port"`

	HTTP    EndpointConfig `toml:"http"`
	WS      EndpointConfig `toml:"ws"`
	IPC     IPCConfig      `toml:"ipc"`
	AuthRPC AuthRPCConfig  `toml:"authrpc"`

	// Signer endpoint; empty derives the clef IPC socket
	Signer string `toml:"signer"`
}

type ConsensusHTTPConfig struct {
	Enable      bool   `toml:"enable"`
	Address     string `toml:"address"`
	Port        string `toml:"port"`
	AllowOrigin string `toml:"allow_origin"`
}

type ConsensusConfig struct {
	Enable bool   `toml:"enable"`
	Name   string `toml:"name"`
	Image  string `toml:"image"`
	Binary string `toml:"binary"`

	Network                  string `toml:"network"`
	CheckpointSyncURL        string `toml:"checkpoint_sync_url"`
	AllowInsecureGenesisSync bool   `toml:"allow_insecure_genesis_sync"`

	// Empty derives http://<execution container>:<authrpc port>
	ExecutionEndpoint string `toml:"execution_endpoint"`

	HTTP ConsensusHTTPConfig `toml:"http"`
}
