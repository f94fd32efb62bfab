package embedder

import (
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider          string        `koanf:"provider"`
	APIKey            string        `koanf:"api_key"`
	Model             string        `koanf:"model"`
	BaseURL           string        `koanf:"base_url"`
	CacheSize         int           `koanf:"cache_size"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Timeout           time.Duration `koanf:"timeout"`
}

// New creates an embedder for the configured provider. An empty provider
// selects the local embedder.
func New(cfg Config) (Embedder, error) {
	opts := RemoteOptions{
		Endpoint:          cfg.BaseURL,
		Model:             cfg.Model,
		CacheSize:         cfg.CacheSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout,
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, opts)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, opts)
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.CacheSize), nil
	case ProviderLocal, "":
		return NewLocalProvider(cfg.CacheSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}
