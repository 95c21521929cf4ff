// Package config provides YAML and .env based configuration for ekb.
// Configuration is loaded with a layered precedence: defaults, then the YAML
// file, then .env, then the process environment. Environment variables
// always win, so deployments can override any file value.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. EKB_CONFIG environment variable
//  3. ~/.ednevnik-kb/config.yaml
//  4. ./ekb.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DotEnvFile is the .env file read from the working directory.
const DotEnvFile = ".env"

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Source configures access to the tenant partitions.
	Source SourceConfig `yaml:"source"`

	// Corpus configures the store the corpus is written to and searched in.
	Corpus CorpusConfig `yaml:"corpus"`

	// Embedding configures the encoder.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Pipeline configures the embedding batcher.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Runs configures the run ledger.
	Runs RunsConfig `yaml:"runs"`
}

// SourceConfig holds tenant partition settings.
type SourceConfig struct {
	// Driver is sqlite or postgres.
	Driver string `yaml:"driver"`
	// DSN is the postgres connection string of the workspace database.
	DSN string `yaml:"dsn"`
	// Dir holds one sqlite file per partition.
	Dir string `yaml:"dir"`
}

// CorpusConfig holds corpus store settings.
type CorpusConfig struct {
	// Backend is sql or qdrant.
	Backend string `yaml:"backend"`
	// Driver is the database/sql driver of the sql backend (sqlite, postgres).
	Driver string `yaml:"driver"`
	// DSN is the connection string of the sql backend.
	DSN string `yaml:"dsn"`
	// Qdrant holds the qdrant backend settings.
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// EmbeddingConfig holds encoder settings.
type EmbeddingConfig struct {
	// Provider selects the encoder backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host"`
	// AzureAPIVersion is the Azure OpenAI API version.
	AzureAPIVersion string `yaml:"azure_api_version"`
}

// PipelineConfig holds embedding batcher settings.
type PipelineConfig struct {
	// BatchSize is the number of records encoded together.
	BatchSize int `yaml:"batch_size"`
	// Workers bounds concurrent partition scans.
	Workers int `yaml:"workers"`
	// EncodeRetries is how often a failed encode call is retried.
	EncodeRetries int `yaml:"encode_retries"`
	// MaxInputTokens is the encoder input window used to flag descriptions
	// the encoder would truncate. -1 disables the check.
	MaxInputTokens int `yaml:"max_input_tokens"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var EKB_API_KEY.
	APIKey string `yaml:"api_key"`
	// TopK is the default number of search hits.
	TopK int `yaml:"top_k"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// RunsConfig holds run ledger settings.
type RunsConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"SOURCE_DRIVER", func(c *Config) string { return c.Source.Driver }},
	{"SOURCE_DSN", func(c *Config) string { return c.Source.DSN }},
	{"SOURCE_DIR", func(c *Config) string { return c.Source.Dir }},
	{"CORPUS_BACKEND", func(c *Config) string { return c.Corpus.Backend }},
	{"CORPUS_DRIVER", func(c *Config) string { return c.Corpus.Driver }},
	{"CORPUS_DSN", func(c *Config) string { return c.Corpus.DSN }},
	{"QDRANT_HOST", func(c *Config) string { return c.Corpus.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Corpus.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Corpus.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Corpus.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Corpus.Qdrant.TLS) }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Embedding.OllamaHost }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Embedding.AzureAPIVersion }},
	{"PIPELINE_BATCH_SIZE", func(c *Config) string { return intStr(c.Pipeline.BatchSize) }},
	{"PIPELINE_WORKERS", func(c *Config) string { return intStr(c.Pipeline.Workers) }},
	{"PIPELINE_ENCODE_RETRIES", func(c *Config) string { return intStr(c.Pipeline.EncodeRetries) }},
	{"PIPELINE_MAX_INPUT_TOKENS", func(c *Config) string { return intStr(c.Pipeline.MaxInputTokens) }},
	{"EKB_HOST", func(c *Config) string { return c.Server.Host }},
	{"EKB_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"EKB_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"EKB_TOP_K", func(c *Config) string { return intStr(c.Server.TopK) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"EKB_RUNS_DB", func(c *Config) string { return c.Runs.DBPath }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. A .env file in the working directory is applied first. Existing
// env vars are never overwritten (env always wins).
// Returns the YAML path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	if err := loadDotEnv(DotEnvFile, log); err != nil {
		return "", err
	}

	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue
		}
		if err := os.Setenv(m.envKey, yamlVal); err != nil {
			return "", fmt.Errorf("config: set %s: %w", m.envKey, err)
		}
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// loadDotEnv applies path with godotenv. godotenv.Load never overrides
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string, log *slog.Logger) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	log.Debug("config: loaded dotenv file", slog.String("path", path))
	return nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("EKB_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".ednevnik-kb", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("ekb.yaml"); err == nil {
		return "ekb.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
