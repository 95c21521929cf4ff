package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Corpus backends.
const (
	BackendSQL    = "sql"
	BackendQdrant = "qdrant"
)

// RunsDBDisabled turns the run ledger off when used as EKB_RUNS_DB.
const RunsDBDisabled = "disabled"

// Settings is the resolved runtime configuration, read from the environment
// after [Load] has applied any file values.
type Settings struct {
	SourceDriver string
	SourceDSN    string
	SourceDir    string

	CorpusBackend string
	CorpusDriver  string
	CorpusDSN     string

	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
	QdrantAPIKey     string
	QdrantTLS        bool

	BatchSize      int
	Workers        int
	EncodeRetries  int
	MaxInputTokens int

	Host   string
	Port   int
	APIKey string
	TopK   int

	// RunsDB is the run ledger path. Empty means the default location.
	RunsDB string
}

// FromEnv resolves Settings from the environment. Malformed numbers are
// reported rather than silently replaced by defaults.
func FromEnv() (Settings, error) {
	s := Settings{
		SourceDriver:     envOr("SOURCE_DRIVER", "sqlite"),
		SourceDSN:        os.Getenv("SOURCE_DSN"),
		SourceDir:        os.Getenv("SOURCE_DIR"),
		CorpusBackend:    strings.ToLower(envOr("CORPUS_BACKEND", BackendSQL)),
		CorpusDriver:     envOr("CORPUS_DRIVER", "sqlite"),
		CorpusDSN:        os.Getenv("CORPUS_DSN"),
		QdrantHost:       envOr("QDRANT_HOST", "localhost"),
		QdrantCollection: envOr("QDRANT_COLLECTION", "ednevnik_kb"),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantTLS:        strings.EqualFold(os.Getenv("QDRANT_TLS"), "true"),
		Host:             envOr("EKB_HOST", "127.0.0.1"),
		APIKey:           os.Getenv("EKB_API_KEY"),
		RunsDB:           os.Getenv("EKB_RUNS_DB"),
	}

	ints := []struct {
		key      string
		dst      *int
		fallback int
	}{
		{"QDRANT_PORT", &s.QdrantPort, 6334},
		{"PIPELINE_BATCH_SIZE", &s.BatchSize, 0},
		{"PIPELINE_WORKERS", &s.Workers, 0},
		{"PIPELINE_ENCODE_RETRIES", &s.EncodeRetries, 0},
		{"PIPELINE_MAX_INPUT_TOKENS", &s.MaxInputTokens, 0},
		{"EKB_PORT", &s.Port, 8080},
		{"EKB_TOP_K", &s.TopK, 0},
	}
	for _, n := range ints {
		v, err := envInt(n.key, n.fallback)
		if err != nil {
			return Settings{}, err
		}
		*n.dst = v
	}

	switch s.CorpusBackend {
	case BackendSQL:
		if s.CorpusDSN == "" {
			return Settings{}, fmt.Errorf("config: CORPUS_DSN is required for the sql backend")
		}
	case BackendQdrant:
	default:
		return Settings{}, fmt.Errorf("config: unknown CORPUS_BACKEND %q (valid: %s, %s)", s.CorpusBackend, BackendSQL, BackendQdrant)
	}
	return s, nil
}

// RunsDisabled reports whether the run ledger is turned off.
func (s Settings) RunsDisabled() bool {
	return strings.EqualFold(s.RunsDB, RunsDBDisabled)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
