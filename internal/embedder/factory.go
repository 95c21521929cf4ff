package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/ednevnik-kb/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536

	defaultOllamaHost      = "http://localhost:11434"
	defaultAzureAPIVersion = "2024-02-01"
)

// Backends lists the accepted EMBEDDING_PROVIDER values.
var Backends = []string{"ollama", "openai", "azure"}

// DefaultDimensions returns the vector size produced by the default model of
// backend. EMBEDDING_DIMENSIONS always takes precedence when set. Stores that
// pre-size a collection (Qdrant) use this.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// Backend resolves the configured encoder backend, defaulting to ollama.
func Backend() string {
	return getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")
}

// Model resolves the embedding model name of backend, as recorded in the run
// ledger.
func Model(backend string) string {
	if backend == "ollama" {
		return getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel)
	}
	return getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
}

// OllamaHost resolves the Ollama base URL: EMBEDDING_ENDPOINT, then
// OLLAMA_HOST, then the local default.
func OllamaHost() string {
	if host := getEnv("EMBEDDING_ENDPOINT"); host != "" {
		return host
	}
	return getEnvOrDefault("OLLAMA_HOST", defaultOllamaHost)
}

// NewFromEnv constructs the encoder selected by the environment.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER (default: ollama)
//  2. EMBEDDING_MODEL overrides the backend's default model
//  3. EMBEDDING_API_KEY overrides OPENAI_API_KEY / AZURE_OPENAI_API_KEY
//  4. EMBEDDING_ENDPOINT overrides OLLAMA_HOST / AZURE_OPENAI_ENDPOINT
//  5. EMBEDDING_DIMENSIONS requests a reduced vector size (openai/azure only)
func NewFromEnv() (rag.Embedder, error) {
	backend := Backend()
	switch backend {
	case "ollama":
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  OllamaHost(),
			Model: getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
		}), nil

	case "openai":
		apiKey := firstEnv("EMBEDDING_API_KEY", "OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    getEnv("EMBEDDING_ENDPOINT"),
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		}), nil

	case "azure":
		apiKey := firstEnv("EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := firstEnv("EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint,
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
			Azure:      true,
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", defaultAzureAPIVersion),
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q, valid values: %v", backend, Backends)
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// firstEnv returns the first non-empty variable among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
