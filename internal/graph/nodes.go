package graph

import (
	"context"
	"fmt"

	"github.com/agentctl/runtime/internal/agent"
)

// AgentNode adapts an agent.LLMProvider into a NodeFunc over
// map[string]any state: it reads a prompt from InputKey, runs a fresh
// Agent against it, and writes the response to OutputKey (optionally
// appending a one-line trace to HistoryKey for a reducer to accumulate).
type AgentNode struct {
	Name         string
	Provider     agent.LLMProvider
	SystemPrompt string
	Tools        []agent.Tool
	MaxSteps     int

	InputKey   string
	OutputKey  string
	HistoryKey string

	// TransformInput overrides reading InputKey directly, building the
	// prompt from the full state instead.
	TransformInput func(state map[string]any) string

	// TransformOutput overrides the default {OutputKey: response} update,
	// letting a node shape an arbitrary state patch from the response.
	TransformOutput func(response string, state map[string]any) map[string]any
}

// Func returns the NodeFunc this AgentNode adapts to, ready for
// StateGraph.AddNode.
func (n *AgentNode) Func() NodeFunc[map[string]any] {
	return func(ctx context.Context, state map[string]any) (map[string]any, error) {
		var input string
		if n.TransformInput != nil {
			input = n.TransformInput(state)
		} else if v, ok := state[n.InputKey]; ok {
			input = fmt.Sprintf("%v", v)
		}
		if input == "" {
			return map[string]any{}, nil
		}

		sub := agent.NewAgent(n.Provider, agent.AgentConfig{
			Name:         n.Name,
			SystemPrompt: n.SystemPrompt,
			Tools:        n.Tools,
			MaxSteps:     n.MaxSteps,
		})
		sub.AddUserMessage(input)

		response, _, err := sub.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("graph: agent node %s: %w", n.Name, err)
		}

		if n.TransformOutput != nil {
			return n.TransformOutput(response, state), nil
		}

		outputKey := n.OutputKey
		if outputKey == "" {
			outputKey = "output"
		}
		update := map[string]any{outputKey: response}
		if n.HistoryKey != "" {
			update[n.HistoryKey] = []any{fmt.Sprintf("[%s] %s", n.Name, response)}
		}
		return update, nil
	}
}

// ToolNode adapts an agent.Tool into a NodeFunc: it maps state to tool
// parameters, executes the tool, and writes its result to OutputKey.
// Useful for deterministic steps (a file write, a lookup) that don't
// need LLM reasoning.
type ToolNode struct {
	Tool        agent.Tool
	InputMapper func(state map[string]any) ([]byte, error)
	OutputKey   string
	HistoryKey  string
}

// Func returns the NodeFunc this ToolNode adapts to.
func (n *ToolNode) Func() NodeFunc[map[string]any] {
	return func(ctx context.Context, state map[string]any) (map[string]any, error) {
		params, err := n.InputMapper(state)
		if err != nil {
			return nil, fmt.Errorf("graph: tool node %s: build params: %w", n.Tool.Name(), err)
		}

		result, err := n.Tool.Execute(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("graph: tool node %s: %w", n.Tool.Name(), err)
		}

		outputKey := n.OutputKey
		if outputKey == "" {
			outputKey = "tool_result"
		}
		update := map[string]any{outputKey: result.Content}
		if n.HistoryKey != "" {
			status := "success"
			if result.IsError {
				status = "failed"
			}
			update[n.HistoryKey] = []any{fmt.Sprintf("[%s:%s] %s", n.Tool.Name(), status, result.Content)}
		}
		return update, nil
	}
}

// CreateRouter builds a ConditionFunc that reads conditionKey from state
// and maps its string value through routeMap, falling back to fallback
// (typically End) when the value isn't present in the map.
func CreateRouter(conditionKey string, routeMap map[string]string, fallback string) ConditionFunc[map[string]any] {
	return func(ctx context.Context, state map[string]any) (string, error) {
		value := fmt.Sprintf("%v", state[conditionKey])
		if target, ok := routeMap[value]; ok {
			return target, nil
		}
		return fallback, nil
	}
}
