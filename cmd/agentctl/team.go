package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agentctl/runtime/internal/config"
	"github.com/agentctl/runtime/internal/skills"
	"github.com/agentctl/runtime/internal/team"
	"github.com/agentctl/runtime/pkg/models"
	"github.com/spf13/cobra"
)

func buildTeamCmd() *cobra.Command {
	var (
		message      string
		workspaceDir string
		teamName     string
		maxSteps     int
	)

	cmd := &cobra.Command{
		Use:   "team",
		Short: "Delegate a message to a configured team of agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if len(cfg.Team) == 0 {
				return fmt.Errorf("no team members configured; add a team: section to %s", configPath)
			}
			if maxSteps > 0 {
				cfg.MaxSteps = maxSteps
			}

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}

			skillMgr := skills.NewManager()
			if err := skillMgr.Discover(skillRoots(workspaceDir)...); err != nil {
				return fmt.Errorf("discover skills: %w", err)
			}

			members := make([]models.TeamMemberConfig, 0, len(cfg.Team))
			for _, m := range cfg.Team {
				members = append(members, models.TeamMemberConfig{
					ID:    m.ID,
					Name:  m.Name,
					Role:  m.Role,
					Tools: m.Tools,
				})
			}

			t := team.New(provider, models.TeamConfig{
				Name:    teamName,
				Members: members,
			}, defaultTools(workspaceDir, skillMgr), workspaceDir)

			result, err := t.Run(cmd.Context(), message, cfg.MaxSteps)
			if err != nil {
				return fmt.Errorf("run team: %w", err)
			}
			return json.NewEncoder(os.Stdout).Encode(result)
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "message to delegate to the team (required)")
	cmd.Flags().StringVar(&workspaceDir, "workspace", ".", "workspace directory every member's tools operate on")
	cmd.Flags().StringVar(&teamName, "name", "agentctl-team", "team name reported in results")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "override the configured step budget")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
