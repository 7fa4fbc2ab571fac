package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fulvian/devstream/internal/retry"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
	Retry     retry.Config
}

func (c Config) options() ProviderOptions {
	return ProviderOptions{
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		Model:     c.Model,
		Dimension: c.Dimension,
		Timeout:   c.Timeout,
		Retry:     c.Retry,
	}
}

// New creates an embedder with explicit configuration.
// An empty provider is resolved with DetectProvider.
func New(cfg Config) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = DetectProvider()
	}

	switch provider {
	case ProviderJina:
		return NewJinaProvider(cfg.options())
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.options())
	case ProviderOllama:
		return NewOllamaProvider(cfg.options())
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider implied by available API keys.
// Priority: JINA_API_KEY, then OPENAI_API_KEY, then local.
func DetectProvider() string {
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
