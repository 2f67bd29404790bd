package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by NewFromEnv
const (
	EnvEmbeddingProvider = "FOLDERRAG_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "FOLDERRAG_EMBEDDING_MODEL"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvOpenAIBaseURL     = "OPENAI_BASE_URL"
	EnvOllamaHost        = "OLLAMA_HOST"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string // OpenAI-compatible endpoint or Ollama host
	Model     string
	CacheSize int
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. FOLDERRAG_EMBEDDING_PROVIDER (openai, ollama, local)
// 2. OPENAI_API_KEY set → openai, OLLAMA_HOST set → ollama
// 3. Default to local otherwise
func NewFromEnv() (Embedder, error) {
	provider := os.Getenv(EnvEmbeddingProvider)
	model := os.Getenv(EnvEmbeddingModel)
	openaiKey := os.Getenv(EnvOpenAIAPIKey)

	cache := NewCache(10000) // Default cache size

	// Explicit provider selection
	if provider != "" {
		provider = strings.ToLower(provider)
		switch provider {
		case ProviderOpenAI:
			return NewOpenAIProvider(openaiKey, "", model, cache)
		case ProviderOllama:
			return NewOllamaProvider("", model, cache)
		case ProviderLocal:
			return NewLocalProvider(cache)
		default:
			return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, provider)
		}
	}

	// Auto-detect based on available configuration
	if openaiKey != "" {
		return NewOpenAIProvider(openaiKey, "", model, cache)
	}
	if os.Getenv(EnvOllamaHost) != "" {
		return NewOllamaProvider("", model, cache)
	}

	// Fallback to local provider
	return NewLocalProvider(cache)
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cache)
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvEmbeddingProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvOllamaHost) != "" {
		return ProviderOllama
	}

	return ProviderLocal
}
