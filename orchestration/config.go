// Package orchestration wires the store, identifier minter, queue
// manager, worker runtime, outcome processor, event bus, and recovery
// loop into the operations a transport (CLI, RPC, MCP tool set) calls.
// Grounded on the teacher's orchestrator.go Orchestrator/Config shape.
package orchestration

import "time"

// Config holds every tunable the orchestrator needs. Values come from
// CLI flags; ClaudeBinary and PermissionMode additionally persist
// through the config key/value table (see Orchestrator.loadConfig), so
// an operator-set value survives even on a run that omits the flag.
type Config struct {
	DBPath             string
	ClaudeBinary       string
	PermissionMode     string
	MaxParallelWorkers int
	WorkerTimeout      time.Duration
	StallTimeout       time.Duration
	OnHoldRecoveryAge  time.Duration
	RecoveryInterval   time.Duration
	Verbose            bool
	DryRun             bool
}

// DefaultConfig mirrors the teacher's factory.DefaultConfig: sane
// defaults an operator can override per flag.
func DefaultConfig() Config {
	return Config{
		DBPath:             "coordinator.db",
		ClaudeBinary:       "claude",
		PermissionMode:     "file",
		MaxParallelWorkers: 4,
		WorkerTimeout:      15 * time.Minute,
		StallTimeout:       5 * time.Minute,
		OnHoldRecoveryAge:  30 * time.Minute,
		RecoveryInterval:   1 * time.Minute,
	}
}
