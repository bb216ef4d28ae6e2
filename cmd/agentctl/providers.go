package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agentctl/runtime/internal/agent"
	"github.com/agentctl/runtime/internal/agent/providers"
	"github.com/agentctl/runtime/internal/agent/routing"
	"github.com/agentctl/runtime/internal/config"
)

// buildProvider constructs the LLMProvider a run should use: the
// configured default provider as primary, with every other provider that
// has credentials in the environment wired in as a failover fallback. If
// routing is configured, the result is instead a content-based Router
// spanning every constructible provider, with the failover-wrapped
// default registered as its default and fallback target.
func buildProvider(cfg config.Config) (agent.LLMProvider, error) {
	defaultName := normalizeProviderName(cfg.Default.Provider)

	primary, err := newNamedProvider(defaultName)
	if err != nil {
		return nil, fmt.Errorf("default provider %q: %w", cfg.Default.Provider, err)
	}

	orchestrator := agent.NewFailoverOrchestrator(primary, agent.DefaultFailoverConfig())
	available := map[string]agent.LLMProvider{defaultName: orchestrator}
	for _, name := range []string{"anthropic", "openai", "bedrock"} {
		if name == defaultName {
			continue
		}
		fallback, err := newNamedProvider(name)
		if err != nil {
			continue
		}
		orchestrator.AddProvider(fallback)
		available[name] = fallback
	}

	if !cfg.Routing.Enabled {
		return orchestrator, nil
	}

	rules := make([]routing.Rule, 0, len(cfg.Routing.Rules))
	for _, r := range cfg.Routing.Rules {
		rules = append(rules, routing.Rule{
			Name:  r.Name,
			Match: routing.Match{Patterns: r.Patterns, Tags: r.Tags},
			Target: routing.Target{
				Provider: normalizeProviderName(r.Provider),
				Model:    r.Model,
			},
		})
	}

	return routing.NewRouter(routing.Config{
		DefaultProvider: defaultName,
		PreferLocal:     cfg.Routing.PreferLocal,
		LocalProviders:  cfg.Routing.LocalProviders,
		Rules:           rules,
		Fallback: routing.Target{
			Provider: normalizeProviderName(cfg.Routing.FallbackProvider),
			Model:    cfg.Routing.FallbackModel,
		},
		FailureCooldown: cfg.Routing.FailureCooldown,
	}, available), nil
}

func normalizeProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "anthropic"
	}
	return name
}

func newNamedProvider(name string) (agent.LLMProvider, error) {
	switch name {
	case "", "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:     apiKey,
			MaxRetries: 2,
		})
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return providers.NewOpenAIProvider(apiKey), nil
	case "bedrock":
		return providers.NewBedrockProvider(providers.BedrockConfig{
			Region:          os.Getenv("AWS_REGION"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			MaxRetries:      2,
			RetryDelay:      200 * time.Millisecond,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
