package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentctl/runtime/internal/agent"
	"github.com/agentctl/runtime/internal/checkpoint"
	"github.com/agentctl/runtime/internal/config"
	"github.com/agentctl/runtime/internal/ralph"
	"github.com/agentctl/runtime/internal/skills"
	"github.com/spf13/cobra"
)

func buildRalphCmd() *cobra.Command {
	var (
		goal          string
		workspaceDir  string
		maxIterations int
	)

	cmd := &cobra.Command{
		Use:   "ralph",
		Short: "Run the iterative completion loop against a goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}

			cpStore, err := checkpoint.NewStore(checkpoint.Config{
				Enabled:                 cfg.Checkpoint.Enabled,
				Backend:                 cfg.Checkpoint.Backend,
				Dir:                     cfg.Checkpoint.Dir,
				DSN:                     cfg.Checkpoint.DSN,
				MaxCheckpointsPerThread: cfg.Checkpoint.MaxCheckpointsPerThread,
			})
			if err != nil {
				return fmt.Errorf("build checkpoint store: %w", err)
			}

			skillMgr := skills.NewManager()
			if err := skillMgr.Discover(skillRoots(workspaceDir)...); err != nil {
				return fmt.Errorf("discover skills: %w", err)
			}

			ralphCfg := ralph.DefaultConfig()
			ralphCfg.Enabled = true
			ralphCfg.MaxIterations = cfg.Ralph.MaxIterations
			ralphCfg.IdleThreshold = cfg.Ralph.IdleThreshold
			ralphCfg.CompletionPromise = cfg.Ralph.CompletionPromise
			ralphCfg.MemoryDir = cfg.Ralph.MemoryDir
			if maxIterations > 0 {
				ralphCfg.MaxIterations = maxIterations
			}

			loop := ralph.New(ralphCfg, workspaceDir, providerSummarizer(provider, cfg.Default.Model), slog.Default())

			var store agent.CheckpointStore
			if cfg.Checkpoint.Enabled {
				store = cpStore
			}

			newAgent := func(contextPrefix string) *agent.Agent {
				return agent.NewAgent(provider, agent.AgentConfig{
					Name:         "agentctl-ralph",
					SystemPrompt: contextPrefix,
					Tools:        defaultTools(workspaceDir, skillMgr),
					MaxSteps:     cfg.MaxSteps,
					Model:        cfg.Default.Model,
					Checkpoints:  store,
					Logger:       slog.Default(),
				})
			}

			result, err := loop.RunLoop(cmd.Context(), goal, newAgent)
			if err != nil {
				return fmt.Errorf("run loop: %w", err)
			}

			fmt.Println(result.Response)
			slog.Info("ralph loop complete",
				"iterations", result.Iterations,
				"total_steps", result.TotalSteps,
				"completed", result.Completion.Completed,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&goal, "goal", "", "goal the loop iterates toward (required)")
	cmd.Flags().StringVar(&workspaceDir, "workspace", ".", "workspace directory the loop operates in")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "override the configured iteration limit")
	_ = cmd.MarkFlagRequired("goal")
	return cmd
}

// providerSummarizer adapts an LLMProvider into a ralph.Summarizer: a
// single-shot, non-streaming completion used to condense a finished
// iteration's transcript into a short carry-forward summary.
func providerSummarizer(provider agent.LLMProvider, model string) ralph.Summarizer {
	return func(ctx context.Context, prompt string) (string, error) {
		ch, err := provider.Complete(ctx, &agent.CompletionRequest{
			Model:    model,
			System:   "Summarize the following in a few sentences, preserving concrete facts, decisions, and file paths.",
			Messages: []agent.CompletionMessage{{Role: "user", Content: prompt}},
		})
		if err != nil {
			return "", err
		}

		var b strings.Builder
		for chunk := range ch {
			if chunk.Error != nil {
				return "", chunk.Error
			}
			b.WriteString(chunk.Text)
		}
		return b.String(), nil
	}
}
