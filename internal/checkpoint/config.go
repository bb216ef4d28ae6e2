// Package checkpoint provides durable storage for agent.State snapshots:
// an in-memory store for tests, a JSON-file store laid out one directory
// per thread, and a modernc.org/sqlite-backed store for multi-process
// deployments. Each store implements agent.CheckpointStore.
package checkpoint

import "github.com/agentctl/runtime/internal/agent"

// Config selects and tunes a CheckpointStore the way a caller would
// configure checkpointing for an AgentLoop.
type Config struct {
	// Enabled gates whether a store is wired into the loop at all.
	Enabled bool

	// Backend selects which store NewStore builds: "memory", "file", or
	// "sqlite". Defaults to "file".
	Backend string

	// Dir is the base directory for the file backend. Defaults to
	// "~/.agentctl/checkpoints"; NewFileStore expands a leading "~".
	Dir string

	// DSN is the sqlite backend's database path (or ":memory:").
	DSN string

	SaveOnToolExecution bool
	SaveOnUserInput     bool
	SaveOnStep          bool

	// MaxCheckpointsPerThread bounds retention. Default: 50.
	MaxCheckpointsPerThread int
}

// DefaultConfig mirrors the reference implementation's checkpoint
// defaults: save after tool execution and before waiting on user input,
// not after every plain reasoning step.
func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		Backend:                 "file",
		SaveOnToolExecution:     true,
		SaveOnUserInput:         true,
		SaveOnStep:              false,
		MaxCheckpointsPerThread: 50,
	}
}

// NewStore builds the store named by cfg.Backend. An empty Backend
// defaults to the file store.
func NewStore(cfg Config) (agent.CheckpointStore, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.DSN)
	default:
		return nil, &UnknownBackendError{Backend: cfg.Backend}
	}
}

// UnknownBackendError reports a Config.Backend value NewStore doesn't
// recognize.
type UnknownBackendError struct{ Backend string }

func (e *UnknownBackendError) Error() string {
	return "checkpoint: unknown backend " + e.Backend
}
