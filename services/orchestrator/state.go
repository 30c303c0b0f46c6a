package orchestrator

import "fmt"

type State int

const (
	Idle State = iota
	Reset
	Configuring
	SigningInit
	SigningRunning
	AwaitingSignerArtifact
	ExecutionRunning
	AwaitingExecutionArtifact
	ConsensusRunning
	Supervising
	Cleanup
	Terminal
)

var stateNames = [...]string{
	"idle",
	"reset",
	"configuring",
	"signing-init",
	"signing-running",
	"awaiting-signer-artifact",
	"execution-running",
	"awaiting-execution-artifact",
	"consensus-running",
	"supervising",
	"cleanup",
	"terminal",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}
