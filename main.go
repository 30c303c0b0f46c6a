package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/ethnode/interfaces"
	"github.com/ezenkico/deploy-commander/ethnode/models"
	"github.com/ezenkico/deploy-commander/ethnode/services/cli"
	"github.com/ezenkico/deploy-commander/ethnode/services/config"
	"github.com/ezenkico/deploy-commander/ethnode/services/docker"
	"github.com/ezenkico/deploy-commander/ethnode/services/logging"
	"github.com/ezenkico/deploy-commander/ethnode/services/orchestrator"
)

type options struct {
	configPath string
	envFile    string
	req        orchestrator.Request

	// set holds the flags given on the command line; only those override
	// the configuration file.
	set map[string]string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("ethnode", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "TOML configuration file")
	fs.StringVar(&opts.envFile, "env", ".env", "dotenv file with secrets")

	fs.BoolVar(&opts.req.Reset, "reset", false, "remove the base directory and any containers of the project first")
	fs.BoolVar(&opts.req.Init, "init", false, "initialize the signer")
	fs.BoolVar(&opts.req.Start, "start", false, "start the node stack")
	fs.BoolVar(&opts.req.NewAccount, "newaccount", false, "create a new signing account")
	fs.StringVar(&opts.req.Password, "password", "", "account password")
	fs.BoolVar(&opts.req.Consensus, "consensus", false, "also run the consensus client")
	fs.BoolVar(&opts.req.DryRun, "dry-run", false, "print the launch commands and exit")

	// Overrides, applied only when given.
	fs.String("base", "", "base directory")
	fs.String("engine", "", "container engine: api or cli")
	fs.Bool("tty", false, "allocate a TTY for long-running containers")
	fs.Bool("http", false, "enable the execution HTTP-RPC server")
	fs.String("http.addr", "", "HTTP-RPC listen address")
	fs.String("http.port", "", "HTTP-RPC port")
	fs.String("http.api", "", "comma separated HTTP-RPC APIs")
	fs.String("http.corsdomain", "", "comma separated CORS domains")
	fs.Bool("ws", false, "enable the execution WS-RPC server")
	fs.String("ws.addr", "", "WS-RPC listen address")
	fs.String("ws.port", "", "WS-RPC port")
	fs.String("ws.api", "", "comma separated WS-RPC APIs")
	fs.String("ws.origins", "", "comma separated WS origins")
	fs.Bool("ipcdisable", false, "disable the execution IPC endpoint")
	fs.String("authrpc.addr", "", "engine API listen address")
	fs.String("authrpc.port", "", "engine API port")
	fs.String("authrpc.vhosts", "", "comma separated engine API virtual hosts")
	fs.String("signer", "", "external signer endpoint for the execution client")
	fs.Int64("chainid", 0, "signer chain id")
	fs.Bool("lightkdf", true, "signer uses light key derivation")
	fs.Bool("nousb", true, "signer disables USB wallets")
	fs.Bool("signer.http", false, "enable the signer HTTP endpoint")
	fs.String("compose.json", "", "write a compose document as JSON")
	fs.String("compose.yaml", "", "write a compose document as YAML")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	opts.set = map[string]string{}
	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = f.Value.String()
	})
	return opts, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// apply copies the flags given on the command line onto cfg.
func apply(cfg *models.Configuration, set map[string]string) error {
	for name, v := range set {
		var err error
		switch name {
		case "base":
			cfg.BaseDir = v
		case "engine":
			cfg.Engine = v
		case "tty":
			cfg.TTY, err = strconv.ParseBool(v)
		case "http":
			cfg.Execution.HTTP.Enable, err = strconv.ParseBool(v)
		case "http.addr":
			cfg.Execution.HTTP.Addr = v
		case "http.port":
			cfg.Execution.HTTP.Port = v
		case "http.api":
			cfg.Execution.HTTP.API = splitList(v)
		case "http.corsdomain":
			cfg.Execution.HTTP.Origins = splitList(v)
		case "ws":
			cfg.Execution.WS.Enable, err = strconv.ParseBool(v)
		case "ws.addr":
			cfg.Execution.WS.Addr = v
		case "ws.port":
			cfg.Execution.WS.Port = v
		case "ws.api":
			cfg.Execution.WS.API = splitList(v)
		case "ws.origins":
			cfg.Execution.WS.Origins = splitList(v)
		case "ipcdisable":
			cfg.Execution.IPC.Disable, err = strconv.ParseBool(v)
		case "authrpc.addr":
			cfg.Execution.AuthRPC.Addr = v
		case "authrpc.port":
			cfg.Execution.AuthRPC.Port = v
		case "authrpc.vhosts":
			cfg.Execution.AuthRPC.VHosts = splitList(v)
		case "signer":
			cfg.Execution.Signer = v
		case "chainid":
			cfg.Signer.ChainID, err = strconv.ParseInt(v, 10, 64)
		case "lightkdf":
			cfg.Signer.LightKDF, err = strconv.ParseBool(v)
		case "nousb":
			cfg.Signer.NoUSB, err = strconv.ParseBool(v)
		case "signer.http":
			cfg.Signer.HTTP.Enable, err = strconv.ParseBool(v)
		case "compose.json":
			cfg.Output.JSON = v
		case "compose.yaml":
			cfg.Output.YAML = v
		}
		if err != nil {
			return fmt.Errorf("flag -%s: %w", name, err)
		}
	}
	return nil
}

func loadConfiguration(opts options) (models.Configuration, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return models.Configuration{}, err
	}
	if err := config.ApplyEnv(&cfg, opts.envFile); err != nil {
		return models.Configuration{}, err
	}
	if err := apply(&cfg, opts.set); err != nil {
		return models.Configuration{}, err
	}
	if err := config.Finalize(&cfg); err != nil {
		return models.Configuration{}, err
	}
	return cfg, nil
}

func selectEngine(cfg models.Configuration, log zerolog.Logger) (interfaces.Engine, func(), error) {
	switch cfg.Engine {
	case "api":
		p, err := docker.NewDockerPlatform(log)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	case "cli":
		return cli.New(cfg.DockerBinary, log), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%q is not a valid engine", cfg.Engine)
	}
}

func run(ctx context.Context, args []string) int {
	log := logging.New("ethnode", os.Stdout)

	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfiguration(opts)
	if err != nil {
		log.Error().Err(err).Msg("configuration")
		return 1
	}
	// containers only get a TTY when we are attached to one, unless asked
	if _, given := opts.set["tty"]; !given && !isatty.IsTerminal(os.Stdin.Fd()) {
		cfg.TTY = false
	}

	engine, closeEngine, err := selectEngine(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("container engine")
		return 1
	}
	defer closeEngine()

	res, err := orchestrator.New(cfg, engine, log).Run(ctx, opts.req)

	if opts.req.DryRun && err == nil {
		for _, cmd := range res.Launches {
			fmt.Println(cmd.String())
		}
	}
	if res.Account.Address != "" {
		log.Info().Str("address", res.Account.Address).Bool("created", res.Account.Created).Msg("signing account")
	}

	return orchestrator.ExitCode(res, err)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}
