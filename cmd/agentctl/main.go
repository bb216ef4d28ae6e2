// Package main provides the CLI entry point for agentctl, an LLM-driven
// agent runtime.
//
// agentctl runs single agents, agent teams, Ralph-style iterative
// completion loops, and StateGraph workflows against Anthropic, OpenAI,
// or Bedrock models, with durable checkpoints and session storage.
//
// # Basic Usage
//
// Run a single agent against a task:
//
//	agentctl run --task "summarize the repository" --workspace .
//
// Run a configured team:
//
//	agentctl team --config agentctl.yaml --message "ship the feature"
//
// Run the iterative completion loop until a goal is met:
//
//	agentctl ralph --goal "make the tests pass" --workspace .
//
// Serve the HTTP API:
//
//	agentctl serve --config agentctl.yaml
//
// List the models the configured provider exposes (pass --live against
// Bedrock to query AWS directly instead of the built-in list):
//
//	agentctl models --live
//
// # Environment Variables
//
//   - AGENTCTL_CONFIG: Path to configuration file (default: agentctl.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
//   - AWS_REGION / AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY: Bedrock credentials
//   - AGENTCTL_JWT_SECRET: HMAC secret for the serve command's bearer auth
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() so tests can exercise it without touching os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentctl",
		Short: "agentctl - LLM-driven agent runtime",
		Long: `agentctl runs single agents, agent teams, iterative completion loops,
and StateGraph workflows against Anthropic, OpenAI, and Bedrock models.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("AGENTCTL_CONFIG"), "path to a YAML or TOML config file")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildTeamCmd(),
		buildRalphCmd(),
		buildGraphCmd(),
		buildCheckpointCmd(),
		buildServeCmd(),
		buildModelsCmd(),
	)
	return rootCmd
}
