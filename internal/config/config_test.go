package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Default.Provider != "anthropic" {
		t.Errorf("Default.Provider = %q, want anthropic", cfg.Default.Provider)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentctl.yaml")
	content := `
default:
  provider: openai
  model: gpt-4o
ralph:
  max_iterations: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Default.Provider != "openai" || cfg.Default.Model != "gpt-4o" {
		t.Errorf("Default = %+v, want openai/gpt-4o", cfg.Default)
	}
	if cfg.Ralph.MaxIterations != 5 {
		t.Errorf("Ralph.MaxIterations = %d, want 5", cfg.Ralph.MaxIterations)
	}
	// Untouched defaults survive the merge.
	if cfg.Ralph.IdleThreshold != 3 {
		t.Errorf("Ralph.IdleThreshold = %d, want the default of 3", cfg.Ralph.IdleThreshold)
	}
}

func TestLoad_YAMLOverridesRouting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentctl.yaml")
	content := `
routing:
  enabled: true
  prefer_local: true
  local_providers: ["ollama"]
  rules:
    - name: code
      tags: ["code"]
      provider: anthropic
      model: claude-sonnet-4-5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Routing.Enabled {
		t.Error("Routing.Enabled = false, want true")
	}
	if !cfg.Routing.PreferLocal {
		t.Error("Routing.PreferLocal = false, want true")
	}
	if len(cfg.Routing.Rules) != 1 || cfg.Routing.Rules[0].Provider != "anthropic" {
		t.Errorf("Routing.Rules = %+v, want one anthropic rule", cfg.Routing.Rules)
	}
}

func TestLoad_TOMLFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentctl.toml")
	content := `
[default]
provider = "bedrock"
model = "claude-3-sonnet"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Default.Provider != "bedrock" {
		t.Errorf("Default.Provider = %q, want bedrock", cfg.Default.Provider)
	}
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("AGENTCTL_TEST_DSN", "postgres://example/db")

	dir := t.TempDir()
	path := filepath.Join(dir, "agentctl.yaml")
	content := "session:\n  dsn: ${AGENTCTL_TEST_DSN}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.DSN != "postgres://example/db" {
		t.Errorf("Session.DSN = %q, want the expanded value", cfg.Session.DSN)
	}
}

func TestToolPolicy_DenyTakesPrecedenceOverAllow(t *testing.T) {
	p := ToolPolicy{Allow: []string{"*"}, Deny: []string{"bash"}}
	if p.Allowed("bash") {
		t.Error("Allowed(bash) = true, want false (denied)")
	}
	if !p.Allowed("read_file") {
		t.Error("Allowed(read_file) = false, want true")
	}
}

func TestToolPolicy_EmptyAllowListPermitsEverythingNotDenied(t *testing.T) {
	p := ToolPolicy{Deny: []string{"bash"}}
	if !p.Allowed("read_file") {
		t.Error("Allowed(read_file) = false, want true")
	}
	if p.Allowed("bash") {
		t.Error("Allowed(bash) = true, want false")
	}
}

func TestToolPolicy_NonEmptyAllowListRestricts(t *testing.T) {
	p := ToolPolicy{Allow: []string{"read_*"}}
	if !p.Allowed("read_file") {
		t.Error("Allowed(read_file) = false, want true")
	}
	if p.Allowed("write_file") {
		t.Error("Allowed(write_file) = true, want false (not in allow list)")
	}
}
