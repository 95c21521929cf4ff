package audit

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("OPENAI_API_KEY", "sk-abc123"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := SanitiseKey("EKB_API_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("CORPUS_BACKEND", "qdrant"); got != "qdrant" {
		t.Errorf("expected 'qdrant', got %q", got)
	}
	if got := SanitiseKey("CORPUS_BACKEND", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_DSN(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{"postgres://ekb:hunter2@db:5432/ednevnik_workspace?sslmode=disable", "postgres://ekb:redacted@db:5432/ednevnik_workspace?sslmode=disable"},
		{"postgres://ekb@db/ednevnik_workspace", "postgres://ekb@db/ednevnik_workspace"},
		{"host=db user=ekb password=hunter2 dbname=ednevnik_workspace", "host=db user=ekb password=redacted dbname=ednevnik_workspace"},
		{"/var/lib/ekb/corpus.db", "/var/lib/ekb/corpus.db"},
		{"", "unset"},
	}
	for _, tc := range cases {
		if got := SanitiseKey("SOURCE_DSN", tc.in); got != tc.want {
			t.Errorf("SanitiseKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.ednevnik-kb/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.ednevnik-kb/config.yaml" {
			t.Errorf("expected '~/.ednevnik-kb/config.yaml', got %q", got)
		}
	}
}

func TestLogCommandStart_NeverLogsSecrets(t *testing.T) {
	t.Setenv("EKB_API_KEY", "very-secret-token")
	t.Setenv("CORPUS_DSN", "postgres://ekb:hunter2@db/corpus")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(context.Background(), log, "embed", "")

	out := buf.String()
	for _, leaked := range []string{"very-secret-token", "hunter2"} {
		if strings.Contains(out, leaked) {
			t.Errorf("audit line leaked %q: %s", leaked, out)
		}
	}
	if !strings.Contains(out, `"EKB_API_KEY":"set"`) || !strings.Contains(out, `"command":"embed"`) {
		t.Errorf("audit line missing expected attributes: %s", out)
	}
}
