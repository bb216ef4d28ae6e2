// Package config loads agentctl's project configuration: default
// model/provider selection, checkpoint and session store backends, the
// team roster, Ralph defaults, and tool allow/deny policy. Files are
// loaded from YAML (the primary format, matching the rest of the stack)
// or TOML (an accepted alternate extension), with environment-variable
// expansion the same way the teacher's config loader does it.
package config

import "time"

// ProviderConfig names one default LLM provider/model pair.
type ProviderConfig struct {
	Provider string `yaml:"provider" toml:"provider"`
	Model    string `yaml:"model" toml:"model"`
}

// CheckpointConfig mirrors checkpoint.Config's tunables in file form.
type CheckpointConfig struct {
	Enabled                 bool   `yaml:"enabled" toml:"enabled"`
	Backend                 string `yaml:"backend" toml:"backend"`
	Dir                     string `yaml:"dir" toml:"dir"`
	DSN                     string `yaml:"dsn" toml:"dsn"`
	MaxCheckpointsPerThread int    `yaml:"max_checkpoints_per_thread" toml:"max_checkpoints_per_thread"`
}

// SessionConfig mirrors session.Config's tunables in file form.
type SessionConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	DSN     string `yaml:"dsn" toml:"dsn"`
}

// RalphConfig mirrors ralph.Config's tunables in file form.
type RalphConfig struct {
	MaxIterations     int    `yaml:"max_iterations" toml:"max_iterations"`
	IdleThreshold     int    `yaml:"idle_threshold" toml:"idle_threshold"`
	CompletionPromise string `yaml:"completion_promise" toml:"completion_promise"`
	MemoryDir         string `yaml:"memory_dir" toml:"memory_dir"`
}

// ToolPolicy lists glob-style allow/deny patterns evaluated in order,
// deny taking precedence on a match, matching the teacher's tool-policy
// evaluation order.
type ToolPolicy struct {
	Allow []string `yaml:"allow" toml:"allow"`
	Deny  []string `yaml:"deny" toml:"deny"`
}

// RoutingRule matches a request by keyword/tag pattern and sends it to a
// specific provider/model pair, evaluated in file order (first match wins).
type RoutingRule struct {
	Name     string   `yaml:"name" toml:"name"`
	Patterns []string `yaml:"patterns,omitempty" toml:"patterns,omitempty"`
	Tags     []string `yaml:"tags,omitempty" toml:"tags,omitempty"`
	Provider string   `yaml:"provider" toml:"provider"`
	Model    string   `yaml:"model,omitempty" toml:"model,omitempty"`
}

// RoutingConfig enables content-based provider selection across every
// provider with credentials present, ahead of the plain default+failover
// chain. Empty (the zero value) keeps routing disabled.
type RoutingConfig struct {
	Enabled          bool          `yaml:"enabled" toml:"enabled"`
	PreferLocal      bool          `yaml:"prefer_local" toml:"prefer_local"`
	LocalProviders   []string      `yaml:"local_providers,omitempty" toml:"local_providers,omitempty"`
	Rules            []RoutingRule `yaml:"rules,omitempty" toml:"rules,omitempty"`
	FallbackProvider string        `yaml:"fallback_provider,omitempty" toml:"fallback_provider,omitempty"`
	FallbackModel    string        `yaml:"fallback_model,omitempty" toml:"fallback_model,omitempty"`
	FailureCooldown  time.Duration `yaml:"failure_cooldown,omitempty" toml:"failure_cooldown,omitempty"`
}

// TeamMember is one roster entry for the default team configuration.
type TeamMember struct {
	ID       string   `yaml:"id" toml:"id"`
	Name     string   `yaml:"name" toml:"name"`
	Role     string   `yaml:"role" toml:"role"`
	Provider string   `yaml:"provider,omitempty" toml:"provider,omitempty"`
	Model    string   `yaml:"model,omitempty" toml:"model,omitempty"`
	Tools    []string `yaml:"tools,omitempty" toml:"tools,omitempty"`
}

// Config is the root of agentctl's project configuration file.
type Config struct {
	Default    ProviderConfig   `yaml:"default" toml:"default"`
	Routing    RoutingConfig    `yaml:"routing" toml:"routing"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" toml:"checkpoint"`
	Session    SessionConfig    `yaml:"session" toml:"session"`
	Ralph      RalphConfig      `yaml:"ralph" toml:"ralph"`
	ToolPolicy ToolPolicy       `yaml:"tool_policy" toml:"tool_policy"`
	Team       []TeamMember     `yaml:"team" toml:"team"`

	MaxSteps   int           `yaml:"max_steps" toml:"max_steps"`
	StepBudget time.Duration `yaml:"step_budget" toml:"step_budget"`
}

// Default returns the baseline configuration applied before any file or
// environment override, mirroring checkpoint.DefaultConfig/
// session.DefaultConfig/ralph.DefaultConfig so a config file only needs
// to specify what it wants to change.
func Default() Config {
	return Config{
		Default: ProviderConfig{Provider: "anthropic", Model: "claude-sonnet-4-5"},
		Checkpoint: CheckpointConfig{
			Enabled:                 true,
			Backend:                 "file",
			Dir:                     "~/.agentctl/checkpoints",
			MaxCheckpointsPerThread: 50,
		},
		Session: SessionConfig{Backend: "sqlite", DSN: "agentctl-sessions.db"},
		Ralph: RalphConfig{
			MaxIterations:     20,
			IdleThreshold:     3,
			CompletionPromise: "TASK COMPLETE",
			MemoryDir:         ".ralph",
		},
		MaxSteps: 25,
	}
}
