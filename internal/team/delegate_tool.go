package team

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentctl/runtime/internal/agent"
)

// funcTool adapts a plain closure to agent.Tool, mirroring the reference
// runtime's create_tool_from_function helper: a tool is just a name, a
// JSON schema, and a function from decoded arguments to a result string.
type funcTool struct {
	name        string
	description string
	schema      json.RawMessage
	fn          func(ctx context.Context, params json.RawMessage) (string, error)
}

func (t *funcTool) Name() string            { return t.name }
func (t *funcTool) Description() string     { return t.description }
func (t *funcTool) Schema() json.RawMessage { return t.schema }

func (t *funcTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	content, err := t.fn(ctx, params)
	if err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: content}, nil
}

// newDelegateToMemberTool builds the "delegate_task_to_member" tool the
// Leader uses when Config.DelegateToAll is false: a directed hand-off to
// one named member.
func (t *Team) newDelegateToMemberTool() agent.Tool {
	ids := make([]string, 0, len(t.Config.Members))
	descriptions := make([]string, 0, len(t.Config.Members))
	for _, m := range t.Config.Members {
		ids = append(ids, m.ID)
		descriptions = append(descriptions, fmt.Sprintf("%s (%s)", m.ID, m.Name))
	}

	schema := fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"member_id": {
				"type": "string",
				"enum": [%s],
				"description": "ID of the team member to delegate to. Available: %s"
			},
			"task": {
				"type": "string",
				"description": "Clear description of the task to delegate"
			}
		},
		"required": ["member_id", "task"]
	}`, jsonStringList(ids), strings.Join(descriptions, ", "))

	return &funcTool{
		name:        "delegate_task_to_member",
		description: "Delegate a task to a specific team member by their ID.",
		schema:      json.RawMessage(schema),
		fn: func(ctx context.Context, params json.RawMessage) (string, error) {
			var args struct {
				MemberID string `json:"member_id"`
				Task     string `json:"task"`
			}
			if err := json.Unmarshal(params, &args); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}

			member, ok := t.memberByID(args.MemberID)
			if !ok {
				return fmt.Sprintf("Error: Member with ID '%s' not found in team. Available members: %s", args.MemberID, strings.Join(ids, ", ")), nil
			}

			result := t.runMember(ctx, member, args.Task)
			t.recordMemberRun(result)
			if result.Success {
				return fmt.Sprintf("%s completed task:\n%s", member.Name, result.Response), nil
			}
			return fmt.Sprintf("%s failed: %s", member.Name, result.Error), nil
		},
	}
}

// newDelegateToAllMembersTool builds the "delegate_task_to_all_members"
// tool the Leader uses when Config.DelegateToAll is true: every member
// runs the same task and the responses are concatenated.
func (t *Team) newDelegateToAllMembersTool() agent.Tool {
	schema := `{
		"type": "object",
		"properties": {
			"task": {
				"type": "string",
				"description": "Clear description of the task to delegate"
			}
		},
		"required": ["task"]
	}`

	return &funcTool{
		name:        "delegate_task_to_all_members",
		description: "Delegate a task to ALL team members at once, to get diverse perspectives or brainstorm ideas.",
		schema:      json.RawMessage(schema),
		fn: func(ctx context.Context, params json.RawMessage) (string, error) {
			var args struct {
				Task string `json:"task"`
			}
			if err := json.Unmarshal(params, &args); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}

			var responses []string
			for _, member := range t.Config.Members {
				result := t.runMember(ctx, member, args.Task)
				t.recordMemberRun(result)
				responses = append(responses, fmt.Sprintf("%s: %s", member.Name, result.Response))
			}
			return strings.Join(responses, "\n\n"), nil
		},
	}
}

func jsonStringList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		b, _ := json.Marshal(item)
		quoted[i] = string(b)
	}
	return strings.Join(quoted, ", ")
}
