// Package credentials drives the signer's credential store through its
// lifecycle: seeding, master key, account creation, password binding and
// rule attestation. Every step is a one-shot container.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/ethnode/models"
	"github.com/ezenkico/deploy-commander/ethnode/services/compiler"
	"github.com/ezenkico/deploy-commander/ethnode/services/readiness"
)

// State of the credential store.
type State int

const (
	Uninitialized State = iota
	Seeded
	MasterKeyed
	AccountCreated
	PasswordSet
	Attested
)

var stateNames = [...]string{"uninitialized", "seeded", "master-keyed", "account-created", "password-set", "attested"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StepRunner runs a one-shot container and releases it afterwards.
type StepRunner interface {
	RunStep(ctx context.Context, spec models.ServiceSpec) (models.StepResult, error)
}

type Options struct {
	Reset      bool
	NewAccount bool
	// Password of the account to create; also binds it with setpw.
	Password string
}

type Manager struct {
	stack  compiler.Stack
	layout models.Layout
	runner StepRunner
	gate   readiness.Gate
	log    zerolog.Logger

	state State
}

func New(stack compiler.Stack, runner StepRunner, gate readiness.Gate, log zerolog.Logger) *Manager {
	return &Manager{
		stack:  stack,
		layout: stack.Layout,
		runner: runner,
		gate:   gate,
		log:    log.With().Str("service", string(models.ServiceSigner)).Logger(),
	}
}

func (m *Manager) State() State { return m.state }

func (m *Manager) master() string { return m.stack.Config.Signer.MasterPassword }

// Validate checks both passwords against the policy without touching the
// filesystem beyond reading the keystore.
func (m *Manager) Validate(opts Options) error {
	minLength := m.stack.Config.Policy.MinLength

	if err := checkPassword("master password", m.master(), minLength); err != nil {
		return err
	}
	if opts.Password != "" {
		return checkPassword("account password", opts.Password, minLength)
	}
	if m.needsAccount(opts) {
		return &models.PolicyViolation{Subject: "account password", MinLength: minLength, Missing: true}
	}
	return nil
}

func checkPassword(subject, password string, minLength int) error {
	if password == "" {
		return &models.PolicyViolation{Subject: subject, MinLength: minLength, Missing: true}
	}
	if len([]rune(password)) < minLength {
		return &models.PolicyViolation{Subject: subject, MinLength: minLength}
	}
	return nil
}

// needsAccount reports whether the sequence ends up with an empty keystore.
func (m *Manager) needsAccount(opts Options) bool {
	if opts.Reset || opts.NewAccount {
		return true
	}
	_, ok := readiness.Newest(m.layout.Keystore())
	return !ok
}

// Prepare brings the store to its attested state and returns the active
// account.
func (m *Manager) Prepare(ctx context.Context, opts Options) (models.Account, error) {
	if err := m.Validate(opts); err != nil {
		return models.Account{}, err
	}

	if opts.Reset {
		if err := m.wipe("reset"); err != nil {
			return models.Account{}, err
		}
	} else if opts.NewAccount {
		if _, ok := readiness.Newest(m.layout.Keystore()); ok {
			if err := m.wipe("newaccount"); err != nil {
				return models.Account{}, err
			}
		}
	}

	if err := m.Seed(); err != nil {
		return models.Account{}, err
	}
	if err := m.Init(ctx); err != nil {
		return models.Account{}, err
	}

	var account models.Account
	_, hasAccount := readiness.Newest(m.layout.Keystore())
	if !hasAccount || opts.Password != "" {
		created, err := m.NewAccount(ctx, opts.Password)
		if err != nil {
			return models.Account{}, err
		}
		if err := m.SetPassword(ctx, created.Address, opts.Password); err != nil {
			return models.Account{}, err
		}
		account = created
	} else {
		address, _, err := m.ActiveAccount(ctx)
		if err != nil {
			return models.Account{}, err
		}
		account = models.Account{Address: address}
	}

	if err := m.Attest(ctx); err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (m *Manager) wipe(reason string) error {
	m.log.Warn().Str("reason", reason).Str("path", m.layout.Signer()).Msg("REMOVE SIGNER STORE")
	if err := os.RemoveAll(m.layout.Signer()); err != nil {
		return fmt.Errorf("remove signer store: %w", err)
	}
	m.state = Uninitialized
	return nil
}

// Seed creates the store directories and writes the rule script and lookup
// database unless they already exist.
func (m *Manager) Seed() error {
	sc := m.stack.Config.Signer

	dirs := []string{m.layout.Keystore(), m.layout.SignerTmp(), filepath.Dir(m.layout.RulesScript())}
	if !sc.IPC.Disable {
		dirs = append(dirs, m.layout.SignerIPCDir())
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("seed signer store: %w", err)
		}
	}

	if err := writeIfAbsent(m.layout.RulesScript(), sc.RulesJS); err != nil {
		return fmt.Errorf("seed rules: %w", err)
	}
	if err := writeIfAbsent(m.layout.LookupDB(), sc.LookupDB); err != nil {
		return fmt.Errorf("seed lookup database: %w", err)
	}

	m.state = Seeded
	return nil
}

func writeIfAbsent(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Init generates the master seed. It is skipped when the seed already exists.
func (m *Manager) Init(ctx context.Context) error {
	if _, err := os.Stat(m.layout.MasterSeed()); err == nil {
		m.log.Debug().Msg("master seed present")
		m.state = MasterKeyed
		return nil
	}

	err := m.step(ctx, "init", []string{m.master(), m.master()},
		"--configdir", compiler.SignerConfigDir,
		"--stdio-ui",
		"init",
	)
	if err != nil {
		return err
	}
	m.state = MasterKeyed
	return nil
}

// NewAccount creates an account encrypted with password and returns it once
// its keyfile shows up in the keystore.
func (m *Manager) NewAccount(ctx context.Context, password string) (models.Account, error) {
	err := m.step(ctx, "newaccount", []string{password},
		"--keystore", compiler.SignerKeystore,
		"--stdio-ui",
		"newaccount",
		"--lightkdf",
	)
	if err != nil {
		return models.Account{}, err
	}

	address, keyFile, err := m.ActiveAccount(ctx)
	if err != nil {
		return models.Account{}, err
	}
	m.state = AccountCreated
	m.log.Info().Str("address", address).Msg("ACCOUNT CREATED")
	return models.Account{Address: address, KeyFile: keyFile, Created: true}, nil
}

// SetPassword stores the account password, authenticated with the master
// password.
func (m *Manager) SetPassword(ctx context.Context, address, password string) error {
	err := m.step(ctx, "setpw", []string{password, password, m.master()},
		"--configdir", compiler.SignerConfigDir,
		"--keystore", compiler.SignerKeystore,
		"--stdio-ui",
		"setpw",
		address,
	)
	if err != nil {
		return err
	}
	m.state = PasswordSet
	return nil
}

// Attest registers the digest of the rule script. A missing script is logged
// and skipped.
func (m *Manager) Attest(ctx context.Context) error {
	digest, err := Digest(m.layout.RulesScript())
	if errors.Is(err, fs.ErrNotExist) {
		m.log.Error().Err(err).Msg("ATTEST SKIPPED - rules script not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("attest: %w", err)
	}

	err = m.step(ctx, "attest", []string{m.master()},
		"--configdir", compiler.SignerConfigDir,
		"--keystore", compiler.SignerKeystore,
		"--stdio-ui",
		"attest",
		digest,
	)
	if err != nil {
		return err
	}
	m.state = Attested
	return nil
}

// ActiveAccount waits for the keystore to hold an entry and returns the
// address of the last one together with its keyfile.
func (m *Manager) ActiveAccount(ctx context.Context) (string, string, error) {
	keyFile, err := m.gate.Await(ctx, m.layout.Keystore())
	if err != nil {
		return "", "", fmt.Errorf("await keystore: %w", err)
	}
	address, err := ReadAddress(keyFile)
	if err != nil {
		return "", "", err
	}
	return address, keyFile, nil
}

// Unlock answers the long-running signer's startup prompts. The returned
// func removes the answers and must be called once the signer is up.
func (m *Manager) Unlock() (func(), error) {
	path := m.layout.SignerStdin()
	if err := writeStdin(path, []string{"ok", m.master()}); err != nil {
		return nil, fmt.Errorf("unlock signer: %w", err)
	}
	return func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.log.Warn().Err(err).Msg("remove signer stdin")
		}
	}, nil
}

// step runs one signer sub-command with answers fed through the stdin file.
func (m *Manager) step(ctx context.Context, name string, answers []string, args ...string) error {
	path := m.layout.SignerStdin()
	if err := writeStdin(path, answers); err != nil {
		return fmt.Errorf("signer %s: %w", name, err)
	}
	defer os.Remove(path)

	m.log.Info().Str("step", name).Msg("SIGNER STEP")
	res, err := m.runner.RunStep(ctx, m.stack.SignerStep(args...))
	if err != nil {
		return fmt.Errorf("signer %s: %w", name, err)
	}
	if res.ExitCode != 0 {
		return &models.ServiceExitError{
			Service:  models.ServiceSigner,
			Step:     name,
			ExitCode: res.ExitCode,
			Output:   res.Output,
		}
	}
	return nil
}

func writeStdin(path string, answers []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	// a leftover file may carry a looser mode; start from a fresh one
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(strings.Join(answers, "\n") + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
