package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/agentctl/runtime/internal/agent"
	"github.com/agentctl/runtime/internal/checkpoint"
	"github.com/agentctl/runtime/internal/config"
	"github.com/spf13/cobra"
)

func buildCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect and manage durable agent checkpoints",
	}
	cmd.AddCommand(buildCheckpointLsCmd(), buildCheckpointRmCmd())
	return cmd
}

func openCheckpointStore(cfg config.Config) (agent.CheckpointStore, error) {
	return checkpoint.NewStore(checkpoint.Config{
		Enabled:                 cfg.Checkpoint.Enabled,
		Backend:                 cfg.Checkpoint.Backend,
		Dir:                     cfg.Checkpoint.Dir,
		DSN:                     cfg.Checkpoint.DSN,
		MaxCheckpointsPerThread: cfg.Checkpoint.MaxCheckpointsPerThread,
	})
}

func buildCheckpointLsCmd() *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List checkpoints for a thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := openCheckpointStore(cfg)
			if err != nil {
				return fmt.Errorf("open checkpoint store: %w", err)
			}

			checkpoints, err := store.ListCheckpoints(cmd.Context(), threadID)
			if err != nil {
				return fmt.Errorf("list checkpoints: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTEP\tMESSAGES\tCREATED")
			for _, cp := range checkpoints {
				fmt.Fprintf(w, "%s\t%d/%d\t%d\t%s\n", cp.ID, cp.CurrentStep, cp.MaxSteps, len(cp.Messages), cp.CreatedAt.Format("2006-01-02T15:04:05"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id to list checkpoints for (required)")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}

func buildCheckpointRmCmd() *cobra.Command {
	var (
		threadID     string
		checkpointID string
		allInThread  bool
	)

	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete one checkpoint, or every checkpoint in a thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := openCheckpointStore(cfg)
			if err != nil {
				return fmt.Errorf("open checkpoint store: %w", err)
			}

			if allInThread {
				if err := store.DeleteThread(cmd.Context(), threadID); err != nil {
					return fmt.Errorf("delete thread: %w", err)
				}
				fmt.Printf("deleted every checkpoint for thread %s\n", threadID)
				return nil
			}

			if checkpointID == "" {
				return fmt.Errorf("--checkpoint is required unless --all is set")
			}
			if err := store.Delete(cmd.Context(), threadID, checkpointID); err != nil {
				return fmt.Errorf("delete checkpoint: %w", err)
			}
			fmt.Printf("deleted checkpoint %s\n", checkpointID)
			return nil
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id the checkpoint belongs to (required)")
	cmd.Flags().StringVar(&checkpointID, "checkpoint", "", "checkpoint id to delete")
	cmd.Flags().BoolVar(&allInThread, "all", false, "delete every checkpoint in the thread")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}
