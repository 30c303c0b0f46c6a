package models

import "strings"

// LaunchCommand is the flattened, ready-to-execute argument vector of a
// ServiceSpec. Treat it as immutable once compiled.
type LaunchCommand []string

func (c LaunchCommand) String() string {
	return strings.Join(c, " ")
}

// RunHandle identifies a container started by an engine. Only the supervisor
// that launched it may stop or remove it.
type RunHandle struct {
	Service ServiceName `json:"service"`
	Name    string      `json:"name"`
	ID      string      `json:"id"`
	TTY     bool        `json:"tty"`
}

// StepResult is the outcome of a one-shot container run.
type StepResult struct {
	ExitCode int64  `json:"exit_code"`
	Output   []byte `json:"-"`
}
