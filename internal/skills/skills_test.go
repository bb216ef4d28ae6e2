package skills

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkill(t *testing.T, root, name, description, body string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	content := "---\nname: " + name + "\ndescription: " + description + "\n---\n" + body
	if err := os.WriteFile(filepath.Join(dir, Filename), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestParse_ExtractsFrontmatterAndBody(t *testing.T) {
	data := []byte("---\nname: test-skill\ndescription: does a thing\n---\n# Instructions\n\nDo the thing.")
	skill, err := Parse(data, "/skills/test-skill")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if skill.Name != "test-skill" || skill.Description != "does a thing" {
		t.Errorf("Parse() = %+v, want name/description populated", skill)
	}
	if !strings.Contains(skill.Content, "Do the thing.") {
		t.Errorf("Content = %q, want the markdown body", skill.Content)
	}
}

func TestParse_RequiresNameAndDescription(t *testing.T) {
	if _, err := Parse([]byte("---\ndescription: x\n---\nbody"), ""); err == nil {
		t.Error("expected an error when name is missing")
	}
	if _, err := Parse([]byte("---\nname: x\n---\nbody"), ""); err == nil {
		t.Error("expected an error when description is missing")
	}
}

func TestParse_RejectsMissingFrontmatterDelimiters(t *testing.T) {
	if _, err := Parse([]byte("no frontmatter here"), ""); err == nil {
		t.Error("expected an error for a file with no frontmatter")
	}
}

func TestManager_DiscoverAndGet(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "security-auditor", "audits code for vulnerabilities", "## Guidelines\nLook for injection flaws.")

	m := NewManager()
	if err := m.Discover(root); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	skill, ok := m.Get("security-auditor")
	if !ok {
		t.Fatal("Get() = false, want the discovered skill")
	}
	if !strings.Contains(skill.Content, "injection flaws") {
		t.Errorf("Content = %q, want the full body", skill.Content)
	}
}

func TestManager_Discover_LaterRootOverridesEarlier(t *testing.T) {
	bundled := t.TempDir()
	workspace := t.TempDir()
	writeSkill(t, bundled, "reviewer", "bundled version", "bundled body")
	writeSkill(t, workspace, "reviewer", "workspace version", "workspace body")

	m := NewManager()
	if err := m.Discover(bundled, workspace); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	skill, _ := m.Get("reviewer")
	if skill.Description != "workspace version" {
		t.Errorf("Description = %q, want the higher-priority workspace version", skill.Description)
	}
}

func TestManager_SkillsMetadataPrompt_ListsNameAndDescription(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "test-writer", "writes unit tests", "body")

	m := NewManager()
	_ = m.Discover(root)

	prompt := m.SkillsMetadataPrompt()
	if !strings.Contains(prompt, "test-writer") || !strings.Contains(prompt, "writes unit tests") {
		t.Errorf("SkillsMetadataPrompt() = %q, missing expected skill metadata", prompt)
	}
}

func TestManager_SkillsMetadataPrompt_EmptyWhenNoSkills(t *testing.T) {
	m := NewManager()
	if prompt := m.SkillsMetadataPrompt(); prompt != "" {
		t.Errorf("SkillsMetadataPrompt() = %q, want empty string", prompt)
	}
}

func TestGetSkillTool_Execute_ReturnsFullContent(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "researcher", "researches topics", "## Do research thoroughly")

	m := NewManager()
	_ = m.Discover(root)
	tool := m.Tool()

	params, _ := json.Marshal(getSkillParams{Name: "researcher"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("Execute() reported an error: %s", result.Content)
	}
	if !strings.Contains(result.Content, "research thoroughly") {
		t.Errorf("Execute() content = %q, want the skill body", result.Content)
	}
}

func TestGetSkillTool_Execute_UnknownSkillIsAnError(t *testing.T) {
	m := NewManager()
	tool := m.Tool()

	params, _ := json.Marshal(getSkillParams{Name: "missing"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for an unknown skill")
	}
}
