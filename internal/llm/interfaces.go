package llm

// LLMRegistry defines the registry operations used by the daemon
// and the quiz oracles
type LLMRegistry interface {
	// List returns all registered provider names
	List() []string

	// Default returns the default provider
	Default() (Provider, error)

	// Get retrieves a provider by name
	Get(name string) (Provider, error)

	// DefaultName returns the configured default, possibly "auto"
	DefaultName() string
}

// Ensure Registry implements LLMRegistry
var _ LLMRegistry = (*Registry)(nil)

// Ensure the concrete providers implement Provider
var (
	_ Provider = (*ClaudeProvider)(nil)
	_ Provider = (*OpenAIProvider)(nil)
	_ Provider = (*OllamaProvider)(nil)
	_ Provider = (*ResilientProvider)(nil)
)
