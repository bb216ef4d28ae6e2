package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/agentctl/runtime/internal/agent"
)

var _ agent.SkillProvider = (*Manager)(nil)
var _ agent.Tool = (*getSkillTool)(nil)

// Manager discovers SKILL.md files under a set of root directories and
// serves them through the agent.SkillProvider capability (a metadata
// summary for the system prompt) plus a get_skill tool for fetching one
// skill's full body on demand.
type Manager struct {
	mu     sync.RWMutex
	skills map[string]*Skill
}

// NewManager builds an empty Manager. Call Discover to populate it.
func NewManager() *Manager {
	return &Manager{skills: make(map[string]*Skill)}
}

// Discover walks each root directory one level deep looking for
// <root>/<skill-name>/SKILL.md, parsing and registering every skill it
// finds. A later root's skill overwrites an earlier root's skill of the
// same name, so callers should order roots from lowest to highest
// priority (bundled, then local, then workspace).
func (m *Manager) Discover(roots ...string) error {
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("skills: read dir %s: %w", root, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(root, entry.Name(), Filename)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			skill, err := ParseFile(path)
			if err != nil {
				return fmt.Errorf("skills: %s: %w", path, err)
			}
			m.mu.Lock()
			m.skills[skill.Name] = skill
			m.mu.Unlock()
		}
	}
	return nil
}

// Get returns one registered skill by name.
func (m *Manager) Get(name string) (*Skill, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.skills[name]
	return s, ok
}

// List returns every registered skill, sorted by name.
func (m *Manager) List() []*Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Skill, 0, len(m.skills))
	for _, s := range m.skills {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// SkillsMetadataPrompt implements agent.SkillProvider: a name+description
// summary for every registered skill, letting an agent choose one without
// paying the token cost of every skill's full body up front.
func (m *Manager) SkillsMetadataPrompt() string {
	list := m.List()
	if len(list) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("The following skills are available. Call get_skill with a skill's name to load its full instructions before using it.\n\n")
	for _, s := range list {
		fmt.Fprintf(&b, "- **%s**: %s\n", s.Name, s.Description)
	}
	return b.String()
}

// Tool returns the get_skill tool bound to this Manager.
func (m *Manager) Tool() agent.Tool {
	return &getSkillTool{manager: m}
}

type getSkillParams struct {
	Name string `json:"name"`
}

type getSkillTool struct {
	manager *Manager
}

func (t *getSkillTool) Name() string        { return "get_skill" }
func (t *getSkillTool) Description() string { return "Load the full instructions for a named skill." }

func (t *getSkillTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Name of the skill to load"}
		},
		"required": ["name"]
	}`)
}

func (t *getSkillTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p getSkillParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &agent.ToolResult{IsError: true, Content: fmt.Sprintf("invalid get_skill arguments: %v", err)}, nil
	}

	skill, ok := t.manager.Get(p.Name)
	if !ok {
		return &agent.ToolResult{IsError: true, Content: fmt.Sprintf("no skill named %q", p.Name)}, nil
	}
	return &agent.ToolResult{Content: skill.Content}, nil
}
