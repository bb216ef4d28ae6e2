package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agentctl/runtime/internal/agent"
	"github.com/agentctl/runtime/internal/config"
	"github.com/agentctl/runtime/internal/graph"
	"github.com/spf13/cobra"
)

func buildGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Run StateGraph workflows",
	}
	cmd.AddCommand(buildGraphRunCmd(), buildGraphDescribeCmd())
	return cmd
}

// buildDraftReviewGraph wires a two-stage draft-then-review workflow:
// a drafting AgentNode, a review AgentNode, and a router that sends the
// draft back for another pass when the reviewer's verdict isn't
// "approved". It is the CLI's one concrete, runnable graph; embedding
// StateGraph directly in a Go program is how a caller builds their own.
func buildDraftReviewGraph(provider agent.LLMProvider) *graph.CompiledGraph[map[string]any] {
	g := graph.New[map[string]any](graph.MergeMaps)
	g.AddReducer("history", graph.AppendSlice)

	draft := &graph.AgentNode{
		Name:       "draft",
		Provider:   provider,
		InputKey:   "task",
		OutputKey:  "draft",
		HistoryKey: "history",
	}
	review := &graph.AgentNode{
		Name:       "review",
		Provider:   provider,
		InputKey:   "draft",
		OutputKey:  "verdict",
		HistoryKey: "history",
		SystemPrompt: "Reply with exactly \"approved\" if the draft fully satisfies the task, " +
			"or \"revise\" followed by specific feedback.",
	}

	g.AddNode("draft", draft.Func())
	g.AddNode("review", review.Func())
	g.AddEdge(graph.Start, "draft")
	g.AddEdge("draft", "review")
	g.AddConditionalEdges("review", graph.CreateRouter("verdict", map[string]string{
		"approved": graph.End,
	}, "draft"), nil)

	compiled, err := g.Compile()
	if err != nil {
		panic(fmt.Sprintf("graph: draft-review workflow does not compile: %v", err))
	}
	return compiled
}

func buildGraphRunCmd() *cobra.Command {
	var task string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the built-in draft-review workflow against a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}

			compiled := buildDraftReviewGraph(provider)
			result, err := compiled.Invoke(cmd.Context(), map[string]any{"task": task}, graph.DefaultRunConfig())
			if err != nil {
				return fmt.Errorf("run graph: %w", err)
			}
			return json.NewEncoder(os.Stdout).Encode(result)
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "task for the draft-review workflow (required)")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func buildGraphDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print the built-in draft-review workflow's node and edge structure",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}
			compiled := buildDraftReviewGraph(provider)
			return json.NewEncoder(os.Stdout).Encode(compiled.GetGraphStructure())
		},
	}
}
