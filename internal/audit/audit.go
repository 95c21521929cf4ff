// Package audit provides a structured audit logger for CLI command invocations.
// It logs command name, resolved configuration, and sanitised environment state
// so operators can trace what happened without exposing secret values.
//
// Secrets are logged as presence/absence only. Connection strings are logged
// with any password removed.
package audit

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// kind says how an env var value is rendered in the audit log.
type kind int

const (
	// plain values are logged as is.
	plain kind = iota
	// secret values are logged as "set" or "unset".
	secret
	// dsn values are logged with the password stripped.
	dsn
)

// auditEntry defines an env var to include in the audit log.
type auditEntry struct {
	// key is the environment variable name.
	key string
	// kind selects the sanitisation.
	kind kind
}

// auditKeys is the ordered list of env vars included in every audit log entry.
var auditKeys = []auditEntry{
	{"SOURCE_DRIVER", plain},
	{"SOURCE_DSN", dsn},
	{"SOURCE_DIR", plain},
	{"CORPUS_BACKEND", plain},
	{"CORPUS_DRIVER", plain},
	{"CORPUS_DSN", dsn},
	{"QDRANT_HOST", plain},
	{"QDRANT_PORT", plain},
	{"QDRANT_COLLECTION", plain},
	{"QDRANT_API_KEY", secret},
	{"EMBEDDING_PROVIDER", plain},
	{"EMBEDDING_MODEL", plain},
	{"EMBEDDING_DIMENSIONS", plain},
	{"EMBEDDING_ENDPOINT", plain},
	{"EMBEDDING_API_KEY", secret},
	{"OLLAMA_HOST", plain},
	{"OPENAI_API_KEY", secret},
	{"AZURE_OPENAI_ENDPOINT", plain},
	{"AZURE_OPENAI_API_KEY", secret},
	{"PIPELINE_BATCH_SIZE", plain},
	{"PIPELINE_WORKERS", plain},
	{"PIPELINE_ENCODE_RETRIES", plain},
	{"PIPELINE_MAX_INPUT_TOKENS", plain},
	{"EKB_API_KEY", secret},
	{"EKB_RUNS_DB", plain},
	{"LOG_LEVEL", plain},
	{"LOG_FORMAT", plain},
}

// kinds indexes auditKeys by name.
var kinds = func() map[string]kind {
	m := make(map[string]kind, len(auditKeys))
	for _, e := range auditKeys {
		m[e.key] = e.kind
	}
	return m
}()

// LogCommandStart emits a structured audit log entry when a CLI command begins.
// It records the command name, config file source, and sanitised environment.
func LogCommandStart(ctx context.Context, log *slog.Logger, command string, configPath string) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	}
	for _, entry := range auditKeys {
		attrs = append(attrs, slog.String(entry.key, SanitiseKey(entry.key, os.Getenv(entry.key))))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns the loggable form of value for the env var key:
// "set" or "unset" for secrets, a password-free form for connection strings,
// and the value itself otherwise. Unknown keys are treated as plain.
func SanitiseKey(key, value string) string {
	switch kinds[key] {
	case secret:
		return presence(value)
	case dsn:
		return valOrUnset(redactDSN(value))
	}
	return valOrUnset(value)
}

// redactDSN removes the password from URL and key=value connection strings.
func redactDSN(v string) string {
	if v == "" {
		return ""
	}
	if u, err := url.Parse(v); err == nil && u.Scheme != "" && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "redacted")
		}
		return u.String()
	}
	fields := strings.Fields(v)
	for i, f := range fields {
		if k, _, ok := strings.Cut(f, "="); ok && strings.EqualFold(k, "password") {
			fields[i] = k + "=redacted"
		}
	}
	return strings.Join(fields, " ")
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// sanitiseConfigPath returns the config path or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
