package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agentctl/runtime/internal/config"
	bedrockdiscovery "github.com/agentctl/runtime/internal/providers/bedrock"
	"github.com/spf13/cobra"
)

func buildModelsCmd() *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models available from the configured default provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if live && normalizeProviderName(cfg.Default.Provider) == "bedrock" {
				return listBedrockModelsLive(cmd)
			}

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(provider.Models())
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "for bedrock, query AWS for the account's currently enabled foundation models instead of the built-in list")
	return cmd
}

// listBedrockModelsLive queries AWS Bedrock's foundation-model catalog
// directly, bypassing BedrockProvider's built-in static model list — useful
// when an account's enabled models differ from what ships in the binary.
func listBedrockModelsLive(cmd *cobra.Command) error {
	models, err := bedrockdiscovery.DiscoverModels(cmd.Context(), &bedrockdiscovery.DiscoveryConfig{
		Region:          os.Getenv("AWS_REGION"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
	})
	if err != nil {
		return fmt.Errorf("discover bedrock models: %w", err)
	}
	return json.NewEncoder(os.Stdout).Encode(models)
}
