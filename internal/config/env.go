package config

import (
	"strconv"
	"strings"
)

// ApplyEnv overlays environment variables onto cfg. getenv is usually
// os.Getenv.
func ApplyEnv(cfg *LocalConfig, getenv func(string) string) {
	env := envReader(getenv)

	cfg.Storage.ProgressPath = env.get("STUDYCOACH_PROGRESS_PATH", cfg.Storage.ProgressPath)
	cfg.Notes.Dir = env.get("STUDYCOACH_NOTES_DIR", cfg.Notes.Dir)
	cfg.Daemon.LogLevel = strings.ToLower(env.get("STUDYCOACH_LOG_LEVEL", cfg.Daemon.LogLevel))
	cfg.Daemon.Port = env.getInt("STUDYCOACH_PORT", cfg.Daemon.Port)
	cfg.Notes.EmbeddingModel = env.get("EMBEDDING_MODEL", cfg.Notes.EmbeddingModel)

	if dsn := env.get("DATABASE_URL", ""); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if url := env.get("RABBITMQ_URL", ""); url != "" {
		cfg.Events.URL = url
		cfg.Events.Enabled = true
	}

	openaiCfg := cfg.provider("openai")
	if key := env.get("OPENAI_API_KEY", ""); key != "" {
		openaiCfg.APIKey = key
		openaiCfg.Enabled = true
	}
	openaiCfg.Model = env.get("OPENAI_MODEL", openaiCfg.Model)
	openaiCfg.URL = env.get("OPENAI_BASE_URL", openaiCfg.URL)

	if key := env.get("ANTHROPIC_API_KEY", ""); key != "" {
		claudeCfg := cfg.provider("claude")
		claudeCfg.APIKey = key
		claudeCfg.Enabled = true
	}
	if url := env.get("OLLAMA_URL", ""); url != "" {
		ollamaCfg := cfg.provider("ollama")
		ollamaCfg.URL = url
		ollamaCfg.Enabled = true
	}
}

// provider returns the named provider config, creating it when absent
func (c *LocalConfig) provider(name string) *ProviderConfig {
	if c.LLM.Providers == nil {
		c.LLM.Providers = map[string]*ProviderConfig{}
	}
	p, ok := c.LLM.Providers[name]
	if !ok || p == nil {
		p = &ProviderConfig{}
		c.LLM.Providers[name] = p
	}
	return p
}

type envReader func(string) string

func (e envReader) get(key, defaultValue string) string {
	if value := e(key); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) getInt(key string, defaultValue int) int {
	if value := e(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
