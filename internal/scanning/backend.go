package scanning

import (
	"fmt"
	"os"
	"strings"
)

// Supported backend identifiers.
const (
	BackendAnthropic = "anthropic"
	BackendGemini    = "gemini"
	BackendOpenAI    = "openai"
	BackendOllama    = "ollama"
)

// ProviderEnv is the legacy environment variable naming the backend.
const ProviderEnv = "AI_PROVIDER"

// SelectBackend returns the configured backend identifier, falling back to
// $AI_PROVIDER and then to anthropic.
func SelectBackend(configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	if env := strings.TrimSpace(os.Getenv(ProviderEnv)); env != "" {
		return env
	}
	return BackendAnthropic
}

// Config selects and configures the backend for the process lifetime.
type Config struct {
	Backend string

	AnthropicKey   string
	AnthropicModel string

	GeminiKey   string
	GeminiModel string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	OllamaURL   string
	OllamaModel string
}

// NewBackend builds the backend named by cfg.Backend. It is meant to be called
// once at startup; any error wraps ErrConfiguration.
func NewBackend(cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendAnthropic:
		b, err := NewAnthropic(cfg.AnthropicKey, cfg.AnthropicModel)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendGemini:
		b, err := NewGemini(cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendOpenAI:
		b, err := NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendOllama:
		b, err := NewOllama(cfg.OllamaURL, cfg.OllamaModel)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q (valid: %s, %s, %s, %s)", ErrConfiguration,
			cfg.Backend, BackendAnthropic, BackendGemini, BackendOpenAI, BackendOllama)
	}
}
