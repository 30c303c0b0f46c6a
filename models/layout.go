package models

import "path/filepath"

// Layout resolves every host path of one stack instance from its base
// directory. Components receive a Layout instead of rebuilding paths.
type Layout struct {
	Base string
}

func NewLayout(base string) Layout {
	return Layout{Base: filepath.Clean(base)}
}

func (l Layout) Abs(path ...string) string {
	return filepath.Join(append([]string{l.Base}, path...)...)
}

func (l Layout) Signer(path ...string) string {
	return l.Abs(append([]string{string(ServiceSigner)}, path...)...)
}

func (l Layout) Execution(path ...string) string {
	return l.Abs(append([]string{string(ServiceExecution)}, path...)...)
}

func (l Layout) Consensus(path ...string) string {
	return l.Abs(append([]string{string(ServiceConsensus)}, path...)...)
}

func (l Layout) SignerData() string     { return l.Signer("data") }
func (l Layout) Keystore() string       { return l.Signer("data", "keystore") }
func (l Layout) MasterSeed() string     { return l.Signer("data", "masterseed.json") }
func (l Layout) RulesScript() string    { return l.Signer("config", "rules.js") }
func (l Layout) LookupDB() string       { return l.Signer("config", "4byte.json") }
func (l Layout) SignerTmp() string      { return l.Signer("tmp") }
func (l Layout) SignerStdin() string    { return l.Signer("tmp", "stdin") }
func (l Layout) SignerIPCDir() string   { return l.Signer("clef") }
func (l Layout) SignerReadyDir() string { return l.Signer("ready") }

func (l Layout) ExecutionData() string { return l.Execution() }

// JWTSecret is generated by the execution client inside its data directory.
func (l Layout) JWTSecret() string {
	return l.Execution(".ethereum", "geth", "jwtsecret")
}

func (l Layout) ConsensusData() string { return l.Consensus() }
