// Package orchestrator brings a node stack up in dependency order, gating
// every dependent on the artifact its dependency produces, and tears it down
// on every exit path.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/ethnode/interfaces"
	"github.com/ezenkico/deploy-commander/ethnode/models"
	"github.com/ezenkico/deploy-commander/ethnode/services/compiler"
	"github.com/ezenkico/deploy-commander/ethnode/services/compose"
	"github.com/ezenkico/deploy-commander/ethnode/services/credentials"
	"github.com/ezenkico/deploy-commander/ethnode/services/logging"
	"github.com/ezenkico/deploy-commander/ethnode/services/readiness"
	"github.com/ezenkico/deploy-commander/ethnode/services/supervisor"
)

type Request struct {
	Reset      bool
	Init       bool
	Start      bool
	NewAccount bool
	Password   string
	Consensus  bool
	DryRun     bool
}

type Result struct {
	Account    models.Account
	ExitStatus int64
	States     []State
	Launches   []models.LaunchCommand
}

type Orchestrator struct {
	cfg    models.Configuration
	engine interfaces.Engine
	log    zerolog.Logger
}

func New(cfg models.Configuration, engine interfaces.Engine, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, engine: engine, log: log}
}

// run holds the state of one invocation.
type run struct {
	*Orchestrator

	cfg     models.Configuration
	log     zerolog.Logger
	stack   compiler.Stack
	layout  models.Layout
	sup     *supervisor.Supervisor
	gate    readiness.Gate
	creds   *credentials.Manager
	specs   map[models.ServiceName]models.ServiceSpec
	state   State
	service models.ServiceName
	result  Result
}

func (r *run) enter(s State) {
	r.state = s
	r.result.States = append(r.result.States, s)
	r.log.Debug().Str("state", s.String()).Msg("transition")
}

// Run drives the stack through its states. Whatever happens, every container
// this run started is stopped and removed before Run returns; the error that
// caused the early exit is returned unchanged, an interrupt excepted.
func (o *Orchestrator) Run(ctx context.Context, req Request) (res Result, err error) {
	cfg := o.cfg
	if req.Consensus {
		cfg.Consensus.Enable = true
	}

	runID := uuid.NewString()
	r := &run{
		Orchestrator: o,
		cfg:          cfg,
		stack:        compiler.NewStack(cfg, runID),
		layout:       cfg.Layout(),
		sup:          supervisor.New(o.engine, o.log),
		gate:         readiness.New(cfg.Wait, o.log),
		service:      models.ServiceExecution,
	}
	r.log = o.log.With().Str("run", runID).Logger()
	r.creds = credentials.New(r.stack, r.sup, r.gate, r.log)
	r.enter(Idle)

	defer func() {
		failed := r.state
		r.enter(Cleanup)
		r.sup.CleanupAll(context.WithoutCancel(ctx))
		r.enter(Terminal)

		if err != nil {
			var interrupt *models.InterruptError
			if ctx.Err() != nil && !errors.As(err, &interrupt) {
				err = &models.InterruptError{State: failed.String(), Cause: err}
			}
			logging.ReportError(r.log, r.service, err)
		}
		res = r.result
	}()

	err = r.execute(ctx, req)
	return r.result, err
}

func (r *run) execute(ctx context.Context, req Request) error {
	// Compile and check passwords before anything is touched.
	if err := r.compile(); err != nil {
		return err
	}
	opts := credentials.Options{Reset: req.Reset, NewAccount: req.NewAccount, Password: req.Password}
	signing := req.Init || req.Start || req.NewAccount
	if signing && !req.DryRun {
		r.service = models.ServiceSigner
		if err := r.creds.Validate(opts); err != nil {
			return err
		}
	}

	if req.Reset && !req.DryRun {
		r.enter(Reset)
		if err := r.reset(ctx); err != nil {
			return err
		}
	}

	r.enter(Configuring)
	if err := r.configure(); err != nil {
		return err
	}
	if req.DryRun || !signing {
		return nil
	}

	r.enter(SigningInit)
	r.service = models.ServiceSigner
	account, err := r.creds.Prepare(ctx, opts)
	if err != nil {
		return err
	}
	r.result.Account = account
	if !req.Start {
		return nil
	}

	if err := r.startSigner(ctx); err != nil {
		return err
	}

	r.enter(ExecutionRunning)
	r.service = models.ServiceExecution
	if err := os.MkdirAll(r.layout.ExecutionData(), 0o755); err != nil {
		return fmt.Errorf("create execution data dir: %w", err)
	}
	// the execution client writes a fresh secret on start
	if err := os.Remove(r.layout.JWTSecret()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale jwt secret: %w", err)
	}
	execution, err := r.sup.Launch(ctx, r.specs[models.ServiceExecution])
	if err != nil {
		return err
	}

	r.enter(AwaitingExecutionArtifact)
	if _, err := r.gate.Await(ctx, r.layout.JWTSecret()); err != nil {
		return fmt.Errorf("await execution jwt secret: %w", err)
	}

	if r.cfg.Consensus.Enable {
		r.enter(ConsensusRunning)
		r.service = models.ServiceConsensus
		if err := os.MkdirAll(r.layout.ConsensusData(), 0o755); err != nil {
			return fmt.Errorf("create consensus data dir: %w", err)
		}
		if _, err := r.sup.Launch(ctx, r.specs[models.ServiceConsensus]); err != nil {
			return err
		}
	}

	r.enter(Supervising)
	r.service = models.ServiceExecution
	code, err := r.sup.Wait(ctx, execution)
	if err != nil {
		return err
	}
	r.result.ExitStatus = code
	if code != 0 {
		r.log.Error().Int64("exit_code", code).Msg("PROCESS EXIT - EXECUTION")
	}
	return nil
}

// compile builds every spec and its launch command. Port errors surface here,
// before anything is spawned.
func (r *run) compile() error {
	specs, err := r.stack.All()
	if err != nil {
		return err
	}

	r.specs = make(map[models.ServiceName]models.ServiceSpec, len(specs))
	for _, spec := range specs {
		cmd, err := compiler.Command(spec, r.cfg.DockerBinary)
		if err != nil {
			return fmt.Errorf("compile %s: %w", spec.Service, err)
		}
		r.specs[spec.Service] = spec
		r.result.Launches = append(r.result.Launches, cmd)
	}
	return nil
}

// reset removes the base directory and whatever an earlier run of the same
// project left running.
func (r *run) reset(ctx context.Context) error {
	if err := r.engine.Sweep(ctx, r.cfg.Project); err != nil {
		return fmt.Errorf("sweep project %q: %w", r.cfg.Project, err)
	}
	r.log.Warn().Str("path", r.layout.Base).Msg("REMOVE BASE DIR")
	if err := os.RemoveAll(r.layout.Base); err != nil {
		return fmt.Errorf("remove base dir: %w", err)
	}
	return nil
}

// configure writes the optional compose artifacts.
func (r *run) configure() error {
	if r.cfg.Output.JSON == "" && r.cfg.Output.YAML == "" {
		return nil
	}

	specs := make([]models.ServiceSpec, 0, len(r.specs))
	for _, name := range []models.ServiceName{models.ServiceSigner, models.ServiceExecution, models.ServiceConsensus} {
		if spec, ok := r.specs[name]; ok {
			specs = append(specs, spec)
		}
	}
	doc, err := compose.Build(r.cfg.Project, specs)
	if err != nil {
		return fmt.Errorf("build compose document: %w", err)
	}

	if r.cfg.Output.JSON != "" {
		if err := doc.WriteJSON(r.cfg.Output.JSON); err != nil {
			return err
		}
		r.log.Info().Str("path", r.cfg.Output.JSON).Msg("compose json written")
	}
	if r.cfg.Output.YAML != "" {
		if err := doc.WriteYAML(r.cfg.Output.YAML); err != nil {
			return err
		}
		r.log.Info().Str("path", r.cfg.Output.YAML).Msg("compose yaml written")
	}
	return nil
}

// startSigner launches the signer and waits for its artifact: the IPC socket
// when IPC is enabled, the ready marker otherwise. The unlock answers are
// removed only after the artifact appears.
func (r *run) startSigner(ctx context.Context) error {
	r.enter(SigningRunning)
	r.service = models.ServiceSigner

	// artifacts left by an earlier run would satisfy the gate at once
	dirs := []string{r.layout.SignerReadyDir()}
	if !r.cfg.Signer.IPC.Disable {
		dirs = append(dirs, r.layout.SignerIPCDir())
	}
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clear %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	artifact := dirs[len(dirs)-1]

	release, err := r.creds.Unlock()
	if err != nil {
		return err
	}
	defer release()

	if _, err := r.sup.Launch(ctx, r.specs[models.ServiceSigner]); err != nil {
		return err
	}

	r.enter(AwaitingSignerArtifact)
	if _, err := r.gate.Await(ctx, artifact); err != nil {
		return fmt.Errorf("await signer: %w", err)
	}
	return nil
}

// ExitCode maps the outcome of Run to a process exit status.
func ExitCode(res Result, err error) int {
	if err == nil {
		return int(res.ExitStatus)
	}

	var (
		interrupt *models.InterruptError
		exit      *models.ServiceExitError
	)
	switch {
	case errors.As(err, &interrupt):
		return 130
	case errors.As(err, &exit) && exit.ExitCode != 0:
		return int(exit.ExitCode)
	default:
		return 1
	}
}
