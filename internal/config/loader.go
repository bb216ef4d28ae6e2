package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads a config file at path, expanding ${VAR}/$VAR environment
// references the way the teacher's loader does, and merges it onto
// Default(). Format is selected by extension: ".toml" for TOML,
// anything else (".yaml", ".yml", or no extension) for YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))

	var file Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, &file); err != nil {
			return Config{}, fmt.Errorf("config: decode toml %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
			return Config{}, fmt.Errorf("config: decode yaml %s: %w", path, err)
		}
	}

	return Merge(cfg, file), nil
}

// Merge overlays override onto base field by field, zero values in
// override leaving the base value untouched — the same override-merge
// shape as mergeRuntimeOptions, applied to file-sourced config instead
// of in-process options.
func Merge(base, override Config) Config {
	merged := base

	if override.Default.Provider != "" {
		merged.Default.Provider = override.Default.Provider
	}
	if override.Default.Model != "" {
		merged.Default.Model = override.Default.Model
	}

	if override.Routing.Enabled {
		merged.Routing.Enabled = true
	}
	if override.Routing.PreferLocal {
		merged.Routing.PreferLocal = true
	}
	if len(override.Routing.LocalProviders) > 0 {
		merged.Routing.LocalProviders = override.Routing.LocalProviders
	}
	if len(override.Routing.Rules) > 0 {
		merged.Routing.Rules = override.Routing.Rules
	}
	if override.Routing.FallbackProvider != "" {
		merged.Routing.FallbackProvider = override.Routing.FallbackProvider
	}
	if override.Routing.FallbackModel != "" {
		merged.Routing.FallbackModel = override.Routing.FallbackModel
	}
	if override.Routing.FailureCooldown > 0 {
		merged.Routing.FailureCooldown = override.Routing.FailureCooldown
	}

	if override.Checkpoint.Backend != "" {
		merged.Checkpoint.Backend = override.Checkpoint.Backend
	}
	if override.Checkpoint.Dir != "" {
		merged.Checkpoint.Dir = override.Checkpoint.Dir
	}
	if override.Checkpoint.DSN != "" {
		merged.Checkpoint.DSN = override.Checkpoint.DSN
	}
	if override.Checkpoint.MaxCheckpointsPerThread > 0 {
		merged.Checkpoint.MaxCheckpointsPerThread = override.Checkpoint.MaxCheckpointsPerThread
	}

	if override.Session.Backend != "" {
		merged.Session.Backend = override.Session.Backend
	}
	if override.Session.DSN != "" {
		merged.Session.DSN = override.Session.DSN
	}

	if override.Ralph.MaxIterations > 0 {
		merged.Ralph.MaxIterations = override.Ralph.MaxIterations
	}
	if override.Ralph.IdleThreshold > 0 {
		merged.Ralph.IdleThreshold = override.Ralph.IdleThreshold
	}
	if override.Ralph.CompletionPromise != "" {
		merged.Ralph.CompletionPromise = override.Ralph.CompletionPromise
	}
	if override.Ralph.MemoryDir != "" {
		merged.Ralph.MemoryDir = override.Ralph.MemoryDir
	}

	if len(override.ToolPolicy.Allow) > 0 {
		merged.ToolPolicy.Allow = override.ToolPolicy.Allow
	}
	if len(override.ToolPolicy.Deny) > 0 {
		merged.ToolPolicy.Deny = override.ToolPolicy.Deny
	}

	if len(override.Team) > 0 {
		merged.Team = override.Team
	}

	if override.MaxSteps > 0 {
		merged.MaxSteps = override.MaxSteps
	}
	if override.StepBudget > 0 {
		merged.StepBudget = override.StepBudget
	}

	return merged
}
