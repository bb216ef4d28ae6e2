// Package spawnagent implements the spawn_agent tool: a depth-bounded
// facility letting a running agent create a fresh sub-agent to handle a
// specific task autonomously, similar in spirit to Claude Code's Task
// tool.
package spawnagent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentctl/runtime/internal/agent"
)

const (
	defaultMaxSteps         = 15
	defaultTokenLimit       = 50000
	hardMaxStepsCeil        = 30
	defaultTaskLogCap       = 200
	defaultResultPreviewCap = 300
)

// Params is the decoded argument shape the LLM supplies for one
// spawn_agent call.
type Params struct {
	Task     string   `json:"task"`
	Role     string   `json:"role,omitempty"`
	Context  string   `json:"context,omitempty"`
	Tools    []string `json:"tools,omitempty"`
	MaxSteps int      `json:"max_steps,omitempty"`
}

// Tool is the spawn_agent tool implementation. One instance is bound to
// one nesting depth; spawning a sub-agent that itself receives
// spawn_agent produces a new Tool at depth+1, so nesting is tracked
// structurally rather than through a shared counter.
type Tool struct {
	Provider     agent.LLMProvider
	ParentTools  map[string]agent.Tool
	WorkspaceDir string

	CurrentDepth int
	MaxDepth     int

	DefaultMaxSteps   int
	DefaultTokenLimit int

	Logger *slog.Logger
}

// New builds the root (depth 0) spawn_agent tool. parentTools is the
// full set of tools available to the spawning agent, keyed by name;
// sub-agents draw their own tool set from this same map.
func New(provider agent.LLMProvider, parentTools map[string]agent.Tool, workspaceDir string, maxDepth int, logger *slog.Logger) *Tool {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &Tool{
		Provider:          provider,
		ParentTools:       parentTools,
		WorkspaceDir:      workspaceDir,
		CurrentDepth:      0,
		MaxDepth:          maxDepth,
		DefaultMaxSteps:   defaultMaxSteps,
		DefaultTokenLimit: defaultTokenLimit,
		Logger:            logger,
	}
}

func (t *Tool) Name() string { return "spawn_agent" }

func (t *Tool) Description() string {
	return fmt.Sprintf(`Spawn a specialized sub-agent to handle a specific task autonomously.

Use this when:
- A task requires specialized expertise or a different approach
- Breaking down a complex task into independent subtasks
- You need focused work on a specific problem without cluttering your main context
- Parallel exploration of different solutions

The sub-agent will execute the task and return its final result to you.
You remain in control and can use the result to continue your work.

Current depth: %d/%d`, t.CurrentDepth, t.MaxDepth)
}

func (t *Tool) Schema() json.RawMessage {
	schema := fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"task": {
				"type": "string",
				"description": "Clear, specific description of what the sub-agent should accomplish"
			},
			"role": {
				"type": "string",
				"description": "Specialized role for the sub-agent (e.g., 'security auditor', 'test writer', 'documentation expert')"
			},
			"context": {
				"type": "string",
				"description": "Relevant background information or context from your current work"
			},
			"tools": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Specific tools to enable. If omitted, inherits the parent's tools (except spawn_agent at max depth)."
			},
			"max_steps": {
				"type": "integer",
				"minimum": 1,
				"maximum": %d,
				"description": "Maximum steps for sub-agent execution (default: %d)"
			}
		},
		"required": ["task"]
	}`, hardMaxStepsCeil, t.DefaultMaxSteps)
	return json.RawMessage(schema)
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if t.CurrentDepth >= t.MaxDepth {
		return &agent.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("maximum agent nesting depth (%d) reached. Cannot spawn more sub-agents. Consider completing the task with available tools instead.", t.MaxDepth),
		}, nil
	}

	var p Params
	if err := json.Unmarshal(params, &p); err != nil {
		return &agent.ToolResult{IsError: true, Content: fmt.Sprintf("invalid spawn_agent arguments: %v", err)}, nil
	}
	if strings.TrimSpace(p.Task) == "" {
		return &agent.ToolResult{IsError: true, Content: "task is required"}, nil
	}

	subTools := t.buildSubAgentTools(p.Tools)
	systemPrompt := t.buildSubAgentPrompt(p.Role, p.Context)

	maxSteps := p.MaxSteps
	if maxSteps <= 0 {
		maxSteps = t.DefaultMaxSteps
	}
	if maxSteps > hardMaxStepsCeil {
		maxSteps = hardMaxStepsCeil
	}

	agentName := fmt.Sprintf("sub_agent_d%d_%s", t.CurrentDepth+1, roleOrGeneral(p.Role))

	if t.Logger != nil {
		t.Logger.Info("spawn_agent: starting sub-agent",
			"task", truncate(p.Task, defaultTaskLogCap),
			"role", p.Role,
			"depth", t.CurrentDepth+1,
			"max_depth", t.MaxDepth,
			"tools", toolNames(subTools),
			"max_steps", maxSteps,
		)
	}

	sub := agent.NewAgent(t.Provider, agent.AgentConfig{
		Name:                agentName,
		SystemPrompt:        systemPrompt,
		Tools:               subTools,
		MaxSteps:            maxSteps,
		TokenLimit:          t.DefaultTokenLimit,
		EnableSummarization: true,
		Logger:              t.Logger,
	})
	sub.AddUserMessage(p.Task)

	response, logs, err := sub.Run(ctx)
	if err != nil {
		if t.Logger != nil {
			t.Logger.Error("spawn_agent: sub-agent failed", "task", truncate(p.Task, defaultTaskLogCap), "role", p.Role, "error", err)
		}
		return &agent.ToolResult{IsError: true, Content: fmt.Sprintf("sub-agent execution failed: %v", err)}, nil
	}

	stepsUsed, toolCalls, errored := summarizeLogs(logs)

	if t.Logger != nil {
		t.Logger.Info("spawn_agent: sub-agent complete",
			"task", truncate(p.Task, defaultTaskLogCap),
			"role", p.Role,
			"depth", t.CurrentDepth+1,
			"steps_used", stepsUsed,
			"tool_calls", toolCalls,
			"success", !errored,
		)
	}

	formatted := t.formatResult(p.Task, p.Role, response, stepsUsed, toolCalls, maxSteps)
	return &agent.ToolResult{Content: formatted}, nil
}

func roleOrGeneral(role string) string {
	if role == "" {
		return "general"
	}
	return role
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func toolNames(tools []agent.Tool) []string {
	names := make([]string, len(tools))
	for i, tl := range tools {
		names[i] = tl.Name()
	}
	return names
}

func summarizeLogs(logs []agent.ExecutionLogEntry) (stepsUsed, toolCalls int, errored bool) {
	for _, entry := range logs {
		switch entry.Type {
		case "step":
			stepsUsed++
		case "tool_call":
			toolCalls++
		}
		if entry.Type == "error" {
			errored = true
		}
		if success, ok := entry.Data["success"].(bool); ok && !success {
			errored = true
		}
	}
	return stepsUsed, toolCalls, errored
}

// buildSubAgentTools resolves the tool set a sub-agent runs with. An
// explicit name list filters ParentTools down to those names; omitting
// it inherits everything, with spawn_agent itself re-created at depth+1
// (or dropped entirely once that would exceed MaxDepth).
func (t *Tool) buildSubAgentTools(names []string) []agent.Tool {
	if names != nil {
		tools := make([]agent.Tool, 0, len(names))
		for _, name := range names {
			tl, ok := t.ParentTools[name]
			if !ok {
				continue
			}
			if name == "spawn_agent" && t.CurrentDepth+1 >= t.MaxDepth {
				continue
			}
			tools = append(tools, tl)
		}
		return tools
	}

	tools := make([]agent.Tool, 0, len(t.ParentTools))
	for name, tl := range t.ParentTools {
		if name == "spawn_agent" {
			if t.CurrentDepth+1 < t.MaxDepth {
				tools = append(tools, &Tool{
					Provider:          t.Provider,
					ParentTools:       t.ParentTools,
					WorkspaceDir:      t.WorkspaceDir,
					CurrentDepth:      t.CurrentDepth + 1,
					MaxDepth:          t.MaxDepth,
					DefaultMaxSteps:   t.DefaultMaxSteps,
					DefaultTokenLimit: t.DefaultTokenLimit,
					Logger:            t.Logger,
				})
			}
			continue
		}
		tools = append(tools, tl)
	}
	return tools
}

func (t *Tool) buildSubAgentPrompt(role, taskContext string) string {
	var b strings.Builder

	if role != "" {
		fmt.Fprintf(&b, "You are a specialized AI assistant acting as a **%s**.\n", role)
	} else {
		b.WriteString("You are an AI assistant executing a delegated task.\n")
	}

	b.WriteString(`
Your task has been delegated from a parent agent. Focus on completing it efficiently and thoroughly.

## Guidelines
- Stay focused on the assigned task - do not deviate
- Be thorough but concise in your work
- Use available tools when necessary
- Report your findings and results clearly at the end
- If you encounter blockers, explain them clearly

## Important
- You have independent context - you don't see the parent's conversation
- Complete your task fully before finishing
- Provide actionable results the parent can use
`)

	if taskContext != "" {
		fmt.Fprintf(&b, "\n## Context from Parent Agent\n%s\n", taskContext)
	}

	if t.WorkspaceDir != "" {
		fmt.Fprintf(&b, "\n## Workspace\nYou are working in: `%s`\nAll relative paths are resolved from this directory.\n", t.WorkspaceDir)
	}

	if t.CurrentDepth+1 < t.MaxDepth {
		fmt.Fprintf(&b, "\n## Sub-Agent Capability\nYou can spawn sub-agents if needed (depth %d/%d).\nUse this sparingly and only for truly independent subtasks.\n", t.CurrentDepth+1, t.MaxDepth)
	}

	return b.String()
}

func (t *Tool) formatResult(task, role, result string, stepsUsed, toolCalls, maxSteps int) string {
	header := "## Sub-Agent Execution Result"
	if role != "" {
		header += fmt.Sprintf(" (%s)", role)
	}

	taskDisplay := task
	if r := []rune(task); len(r) > defaultResultPreviewCap {
		taskDisplay = string(r[:defaultResultPreviewCap]) + "..."
	}

	return fmt.Sprintf(`%s

**Task:** %s
**Execution:** %d/%d steps, %d tool calls
**Depth:** %d/%d

---

%s
`, header, taskDisplay, stepsUsed, maxSteps, toolCalls, t.CurrentDepth+1, t.MaxDepth, result)
}
