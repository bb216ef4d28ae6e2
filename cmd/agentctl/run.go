package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/agentctl/runtime/internal/agent"
	"github.com/agentctl/runtime/internal/checkpoint"
	"github.com/agentctl/runtime/internal/config"
	"github.com/agentctl/runtime/internal/skills"
	"github.com/spf13/cobra"
)

func buildRunCmd() *cobra.Command {
	var (
		task         string
		workspaceDir string
		model        string
		maxSteps     int
		threadID     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single agent against a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if model != "" {
				cfg.Default.Model = model
			}
			if maxSteps > 0 {
				cfg.MaxSteps = maxSteps
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

			var store agent.CheckpointStore
			if cfg.Checkpoint.Enabled {
				store = cpStore
			}

			a := agent.NewAgent(provider, agent.AgentConfig{
				Name:        "agentctl",
				Tools:       defaultTools(workspaceDir, skillMgr),
				MaxSteps:    cfg.MaxSteps,
				ThreadID:    threadID,
				Model:       cfg.Default.Model,
				Checkpoints: store,
				Logger:      slog.Default(),
			})
			a.AddUserMessage(task)

			response, logs, err := a.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("run agent: %w", err)
			}

			fmt.Fprintln(os.Stdout, response)
			slog.Info("run complete", "steps", len(logs))
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "task prompt for the agent (required)")
	cmd.Flags().StringVar(&workspaceDir, "workspace", ".", "workspace directory the agent's tools operate on")
	cmd.Flags().StringVar(&model, "model", "", "override the configured model")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "override the configured step budget")
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id to resume or checkpoint under")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}
