package session

import "fmt"

// Config selects and tunes a Store the way checkpoint.Config does for
// CheckpointStore.
type Config struct {
	// Backend selects which store NewStore builds: "memory", "sqlite", or
	// "postgres". Defaults to "sqlite".
	Backend string

	// DSN is the backend's connection string (sqlite file path / ":memory:",
	// or a postgres connection URL).
	DSN string
}

// DefaultConfig uses the pure-Go sqlite backend against an on-disk file,
// requiring no external database for a default deployment.
func DefaultConfig() Config {
	return Config{Backend: "sqlite", DSN: "agentctl-sessions.db"}
}

// NewStore builds the Store selected by cfg.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteStore(cfg.DSN)
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("session: unknown backend %q", cfg.Backend)
	}
}
