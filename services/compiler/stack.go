package compiler

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ezenkico/deploy-commander/ethnode/models"
	"github.com/ezenkico/deploy-commander/ethnode/services"
)

// Paths inside the containers.
const (
	SignerConfigDir = "/app/data"
	SignerKeystore  = "/app/data/keystore"
	SignerRules     = "/app/config/rules.js"
	SignerLookupDB  = "/app/config/4byte.json"
	SignerIPCDir    = "/app/clef"
	SignerIPCPath   = "/app/clef/clef.ipc"
	SignerTmp       = "/app/tmp"
	SignerStdin     = "/app/tmp/stdin"
	SignerStdout    = "/tmp/stdout"
	SignerReadyDir  = "/app/ready"
	SignerReady     = "/app/ready/stdin-open"

	ExecutionHome      = "/root"
	ExecutionKeystore  = "/root/.ethereum/keystore"
	ExecutionJWTSecret = "/root/.ethereum/geth/jwtsecret"
	ExecutionIPCPath   = "/root/.ethereum/geth/geth.ipc"
	ExecutionSignerIPC = "/root/clef"

	ConsensusDataDir   = "/root/.lighthouse"
	ConsensusJWTSecret = "/root/jwtsecret"
)

// Stack compiles the specs of one stack instance.
type Stack struct {
	Config models.Configuration
	Layout models.Layout
	Run    string
}

func NewStack(cfg models.Configuration, run string) Stack {
	return Stack{Config: cfg, Layout: cfg.Layout(), Run: run}
}

func (s Stack) name(service string) string {
	return services.DockerServiceName(s.Config.Project, service)
}

func (s Stack) SignerName() string    { return s.name(s.Config.Signer.Name) }
func (s Stack) ExecutionName() string { return s.name(s.Config.Execution.Name) }
func (s Stack) ConsensusName() string { return s.name(s.Config.Consensus.Name) }

func (s Stack) Network() string {
	return services.DockerNetworkName(s.Config.Project)
}

func (s Stack) signerOptions() (Mapping, error) {
	sc := s.Config.Signer

	ports := []Option{}
	cmd := []Option{
		// a chain id of 1 must not collapse into a bare switch
		{"--chainid", decimal(sc.ChainID)},
		{"--nousb", sc.NoUSB},
		{"--lightkdf", sc.LightKDF},
	}
	if sc.IPC.Disable {
		cmd = append(cmd, Option{"--ipcdisable", true})
	} else {
		cmd = append(cmd, Option{"--ipcpath", SignerIPCPath})
	}
	cmd = append(cmd, Option{"--http", sc.HTTP.Enable})

	if sc.HTTP.Enable {
		ports = append(ports, Option{"--http.port", sc.HTTP.Port})
		cmd = append(cmd,
			Option{"--http.addr", sc.HTTP.Addr},
			Option{"--http.vhosts", sc.HTTP.VHosts},
		)
	}

	return Compile(ports, cmd)
}

// Signer compiles the long-running signing service. The wrapper opens the
// stdin file before anything else and then drops a marker in the ready
// directory, so the host may remove the answers once the marker exists.
// Output is teed to a tmpfs.
func (s Stack) Signer() (models.ServiceSpec, error) {
	sc := s.Config.Signer
	m, err := s.signerOptions()
	if err != nil {
		return models.ServiceSpec{}, fmt.Errorf("signer options: %w", err)
	}

	args := []string{
		sc.Binary,
		"--stdio-ui",
		"--configdir", SignerConfigDir,
		"--keystore", SignerKeystore,
		"--rules", SignerRules,
		"--4bytedb-custom", SignerLookupDB,
		"--pcscdpath", "",
		"--auditlog", "",
		"--loglevel", fmt.Sprint(sc.LogLevel),
	}
	args = append(args, m.Args...)
	script := fmt.Sprintf("exec < %s && echo ok > %s && %s 2>&1 | tee %s/clef.log",
		SignerStdin, SignerReady, services.ShellJoin(args...), SignerStdout)

	mounts := []models.MountSpec{
		{Type: models.MountTypeBind, Source: s.Layout.SignerData(), Target: SignerConfigDir},
		{Type: models.MountTypeBind, Source: s.Layout.SignerTmp(), Target: SignerTmp, ReadOnly: true},
		{Type: models.MountTypeBind, Source: s.Layout.SignerReadyDir(), Target: SignerReadyDir},
		{Type: models.MountTypeBind, Source: s.Layout.RulesScript(), Target: SignerRules, ReadOnly: true},
		{Type: models.MountTypeBind, Source: s.Layout.LookupDB(), Target: SignerLookupDB, ReadOnly: true},
		// restricted deletion, owner writable
		{Type: models.MountTypeTmpfs, Target: SignerStdout, Size: "1gb", Mode: os.FileMode(0o1200)},
	}
	if !sc.IPC.Disable {
		mounts = append(mounts, models.MountSpec{Type: models.MountTypeBind, Source: s.Layout.SignerIPCDir(), Target: SignerIPCDir})
	}

	return models.ServiceSpec{
		Service:    models.ServiceSigner,
		Role:       models.ServiceRoleService,
		Name:       s.SignerName(),
		Image:      sc.Image,
		Entrypoint: []string{sc.Shell, "-c"},
		Args:       []string{script},
		WorkingDir: "/app",
		TTY:        s.Config.TTY,
		Ports:      loopback(m.Ports),
		Mounts:     mounts,
		Network:    s.Network(),
		Labels:     services.ServiceLabels(s.Config.Project, s.Run, models.ServiceSigner, models.ServiceRoleService),
	}, nil
}

// SignerStep compiles a one-shot invocation of the signing binary. Answers
// to its prompts are read from the stdin file, never from the command line.
func (s Stack) SignerStep(args ...string) models.ServiceSpec {
	sc := s.Config.Signer
	script := fmt.Sprintf("%s < %s", services.ShellJoin(append([]string{sc.Binary}, args...)...), SignerStdin)

	return models.ServiceSpec{
		Service:    models.ServiceSigner,
		Role:       models.ServiceRoleStep,
		Name:       s.SignerName(),
		Image:      sc.Image,
		Entrypoint: []string{sc.Shell, "-c"},
		Args:       []string{script},
		WorkingDir: "/app",
		TTY:        false,
		Mounts: []models.MountSpec{
			{Type: models.MountTypeBind, Source: s.Layout.SignerData(), Target: SignerConfigDir},
			{Type: models.MountTypeBind, Source: s.Layout.SignerTmp(), Target: SignerTmp, ReadOnly: true},
		},
		Labels: services.ServiceLabels(s.Config.Project, s.Run, models.ServiceSigner, models.ServiceRoleStep),
	}
}

// signerEndpoint is what the execution client passes to --signer.
func (s Stack) signerEndpoint() string {
	if s.Config.Execution.Signer != "" {
		return s.Config.Execution.Signer
	}
	sc := s.Config.Signer
	if !sc.IPC.Disable {
		return ExecutionSignerIPC + "/clef.ipc"
	}
	if sc.HTTP.Enable {
		return fmt.Sprintf("http://%s:%s", s.SignerName(), sc.HTTP.Port)
	}
	return ""
}

func (s Stack) executionOptions() (Mapping, error) {
	ec := s.Config.Execution

	portOrNil := func(enabled bool, port string) any {
		if !enabled {
			return nil
		}
		return port
	}

	ports := []Option{
		{"--http.port", portOrNil(ec.HTTP.Enable, ec.HTTP.Port)},
		{"--ws.port", portOrNil(ec.WS.Enable, ec.WS.Port)},
		{"--authrpc.port", ec.AuthRPC.Port},
	}
	cmd := []Option{
		{"--authrpc.addr", ec.AuthRPC.Addr},
		{"--authrpc.vhosts", ec.AuthRPC.VHosts},
		{"--signer", s.signerEndpoint()},
	}
	if ec.IPC.Disable {
		cmd = append(cmd, Option{"--ipcdisable", true})
	} else {
		path := ec.IPC.Path
		if path == "" {
			path = ExecutionIPCPath
		}
		cmd = append(cmd, Option{"--ipcpath", path})
	}

	cmd = append(cmd, Option{"--http", ec.HTTP.Enable})
	if ec.HTTP.Enable {
		cmd = append(cmd,
			Option{"--http.addr", ec.HTTP.Addr},
			Option{"--http.api", ec.HTTP.API},
			Option{"--http.corsdomain", ec.HTTP.Origins},
		)
	}
	cmd = append(cmd, Option{"--ws", ec.WS.Enable})
	if ec.WS.Enable {
		cmd = append(cmd,
			Option{"--ws.addr", ec.WS.Addr},
			Option{"--ws.api", ec.WS.API},
			Option{"--ws.origins", ec.WS.Origins},
		)
	}
	if network := strings.TrimSpace(ec.Network); network != "" && network != "mainnet" {
		cmd = append(cmd, Option{"--" + network, true})
	}

	return Compile(ports, cmd)
}

// Execution compiles the primary service. It generates the JWT secret inside
// its data directory and reads accounts from the signer keystore.
func (s Stack) Execution() (models.ServiceSpec, error) {
	ec := s.Config.Execution
	m, err := s.executionOptions()
	if err != nil {
		return models.ServiceSpec{}, fmt.Errorf("execution options: %w", err)
	}

	args := []string{
		"--keystore", ExecutionKeystore,
		"--authrpc.jwtsecret", ExecutionJWTSecret,
	}
	args = append(args, m.Args...)

	ports := loopback(m.Ports)
	if ec.P2PPort > 0 {
		ports = append(ports, p2p("p2p", ec.P2PPort, "tcp"), p2p("p2p", ec.P2PPort, "udp"))
	}

	mounts := []models.MountSpec{
		{Type: models.MountTypeBind, Source: s.Layout.ExecutionData(), Target: ExecutionHome},
		{Type: models.MountTypeBind, Source: s.Layout.Keystore(), Target: ExecutionKeystore, ReadOnly: true},
	}
	if !s.Config.Signer.IPC.Disable {
		mounts = append(mounts, models.MountSpec{Type: models.MountTypeBind, Source: s.Layout.SignerIPCDir(), Target: ExecutionSignerIPC})
	}

	dependsOn := []models.ServiceName{models.ServiceSigner}
	if s.Config.Consensus.Enable {
		dependsOn = append(dependsOn, models.ServiceConsensus)
	}

	return models.ServiceSpec{
		Service:   models.ServiceExecution,
		Role:      models.ServiceRoleService,
		Name:      s.ExecutionName(),
		Image:     ec.Image,
		Args:      args,
		TTY:       s.Config.TTY,
		Ports:     ports,
		Mounts:    mounts,
		DependsOn: dependsOn,
		Network:   s.Network(),
		Labels:    services.ServiceLabels(s.Config.Project, s.Run, models.ServiceExecution, models.ServiceRoleService),
	}, nil
}

func (s Stack) executionEndpoint() string {
	if s.Config.Consensus.ExecutionEndpoint != "" {
		return s.Config.Consensus.ExecutionEndpoint
	}
	return fmt.Sprintf("http://%s:%s", s.ExecutionName(), s.Config.Execution.AuthRPC.Port)
}

func (s Stack) consensusOptions() (Mapping, error) {
	cc := s.Config.Consensus

	ports := []Option{}
	cmd := []Option{
		{"--network", cc.Network},
		{"--checkpoint-sync-url", cc.CheckpointSyncURL},
		{"--allow-insecure-genesis-sync", cc.AllowInsecureGenesisSync},
		{"--http", cc.HTTP.Enable},
		{"--execution-endpoint", s.executionEndpoint()},
		{"--execution-jwt", ConsensusJWTSecret},
	}
	if cc.HTTP.Enable {
		ports = append(ports, Option{"--http-port", cc.HTTP.Port})
		cmd = append(cmd,
			Option{"--http-address", cc.HTTP.Address},
			Option{"--http-allow-origin", cc.HTTP.AllowOrigin},
		)
	}

	return Compile(ports, cmd)
}

// Consensus compiles the optional consensus client. It mounts the JWT secret
// produced by the execution client, so it must be launched after that file
// exists.
func (s Stack) Consensus() (models.ServiceSpec, error) {
	cc := s.Config.Consensus
	m, err := s.consensusOptions()
	if err != nil {
		return models.ServiceSpec{}, fmt.Errorf("consensus options: %w", err)
	}

	args := append(strings.Fields(cc.Binary), "--datadir", ConsensusDataDir)
	args = append(args, m.Args...)

	ports := append(loopback(m.Ports),
		p2p("p2p", 9000, "tcp"),
		p2p("p2p", 9000, "udp"),
		p2p("quic", 9001, "udp"),
	)

	return models.ServiceSpec{
		Service: models.ServiceConsensus,
		Role:    models.ServiceRoleService,
		Name:    s.ConsensusName(),
		Image:   cc.Image,
		Args:    args,
		TTY:     s.Config.TTY,
		Ports:   ports,
		Mounts: []models.MountSpec{
			{Type: models.MountTypeBind, Source: s.Layout.ConsensusData(), Target: ConsensusDataDir},
			{Type: models.MountTypeBind, Source: s.Layout.JWTSecret(), Target: ConsensusJWTSecret, ReadOnly: true},
		},
		Network: s.Network(),
		Labels:  services.ServiceLabels(s.Config.Project, s.Run, models.ServiceConsensus, models.ServiceRoleService),
	}, nil
}

// All compiles every service of the stack in launch order.
func (s Stack) All() ([]models.ServiceSpec, error) {
	signer, err := s.Signer()
	if err != nil {
		return nil, err
	}
	execution, err := s.Execution()
	if err != nil {
		return nil, err
	}
	specs := []models.ServiceSpec{signer, execution}

	if s.Config.Consensus.Enable {
		consensus, err := s.Consensus()
		if err != nil {
			return nil, err
		}
		specs = append(specs, consensus)
	}

	return specs, nil
}

// RPC endpoints are only published on the host loopback interface.
func loopback(ports []models.PortBinding) []models.PortBinding {
	out := make([]models.PortBinding, 0, len(ports))
	for _, p := range ports {
		p.HostIP = "127.0.0.1"
		out = append(out, p)
	}
	return out
}

func decimal(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

func p2p(label string, port int, transport string) models.PortBinding {
	return models.PortBinding{Protocol: label, Port: port, Transport: transport, HostIP: "0.0.0.0"}
}
