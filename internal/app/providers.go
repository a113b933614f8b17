package app

import (
	"log/slog"
	"sort"

	"github.com/felixgeelhaar/studycoach/internal/config"
	"github.com/felixgeelhaar/studycoach/internal/llm"
)

// SetupLLMProviders registers the enabled providers from cfg and selects
// the configured default. With llm.resilient set each provider is wrapped
// in a ResilientProvider; the returned functions release them.
func SetupLLMProviders(cfg *config.LocalConfig, registry *llm.Registry, logger *slog.Logger) []func() error {
	if logger == nil {
		logger = slog.Default()
	}

	names := make([]string, 0, len(cfg.LLM.Providers))
	for name := range cfg.LLM.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var closers []func() error
	for _, name := range names {
		providerCfg := cfg.LLM.Providers[name]
		if providerCfg == nil || !providerCfg.Enabled {
			continue
		}

		var provider llm.Provider
		switch name {
		case "claude":
			if providerCfg.APIKey == "" {
				logger.Debug("Claude provider enabled but no API key set")
				continue
			}
			provider = llm.NewClaudeProvider(llm.ClaudeConfig{
				APIKey:  providerCfg.APIKey,
				BaseURL: providerCfg.URL,
				Model:   providerCfg.Model,
			})

		case "openai":
			if providerCfg.APIKey == "" {
				logger.Debug("OpenAI provider enabled but no API key set")
				continue
			}
			provider = llm.NewOpenAIProvider(llm.OpenAIConfig{
				APIKey:  providerCfg.APIKey,
				BaseURL: providerCfg.URL,
				Model:   providerCfg.Model,
			})

		case "ollama":
			provider = llm.NewOllamaProvider(llm.OllamaConfig{
				BaseURL: providerCfg.URL,
				Model:   providerCfg.Model,
			})

		default:
			logger.Warn("unknown LLM provider in config", "name", name)
			continue
		}

		if cfg.LLM.Resilient {
			rcfg := llm.DefaultResilientConfig()
			rcfg.Logger = logger
			resilient := llm.NewResilientProvider(provider, rcfg)
			closers = append(closers, resilient.Close)
			provider = resilient
		}

		registry.Register(name, provider)
		logger.Info("registered LLM provider", "name", name, "model", providerCfg.Model)
	}

	if def := cfg.LLM.DefaultProvider; def != "" && def != "auto" {
		if err := registry.SetDefault(def); err != nil {
			logger.Warn("default LLM provider not available", "name", def, "error", err)
		}
	}
	return closers
}
