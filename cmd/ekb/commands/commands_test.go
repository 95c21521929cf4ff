package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/ednevnik-kb/internal/access"
	"github.com/54b3r/ednevnik-kb/internal/corpus"
	"github.com/54b3r/ednevnik-kb/internal/rag"
)

// runFilter executes `filter` with args and returns its stdout.
func runFilter(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewFilterCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFilterCmd_Root(t *testing.T) {
	t.Parallel()
	out, err := runFilter(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(out); got != "{}" {
		t.Errorf("root filter: want {}, got %s", got)
	}
}

func TestFilterCmd_Teacher(t *testing.T) {
	t.Parallel()
	out, err := runFilter(t, "--role", "teacher", "--tenant", "3", "--tenant", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`"$or"`, `"tenant_id"`, `3`, `7`} {
		if !strings.Contains(out, want) {
			t.Errorf("teacher filter missing %s: %s", want, out)
		}
	}
}

func TestFilterCmd_TenantAdminNeedsTenant(t *testing.T) {
	t.Parallel()
	_, err := runFilter(t, "--role", "tenant_admin")
	if !errors.Is(err, access.ErrMissingScope) {
		t.Errorf("expected ErrMissingScope, got %v", err)
	}

	out, err := runFilter(t, "--role", "tenant_admin", "--admin-tenant", "0")
	if err != nil {
		t.Fatalf("explicit --admin-tenant 0 must compile: %v", err)
	}
	if !strings.Contains(out, `"tenant_id"`) {
		t.Errorf("tenant_admin filter missing tenant_id: %s", out)
	}
}

func TestFilterCmd_UnknownRole(t *testing.T) {
	t.Parallel()
	_, err := runFilter(t, "--role", "janitor")
	if !errors.Is(err, access.ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}
}

func TestPrintSourceCounts(t *testing.T) {
	t.Parallel()
	records := []corpus.Record{
		{Metadata: corpus.Metadata{corpus.KeySource: corpus.SourcePupil}},
		{Metadata: corpus.Metadata{corpus.KeySource: corpus.SourcePupil}},
		{Metadata: corpus.Metadata{corpus.KeySource: corpus.SourceInstitution}},
	}
	var buf bytes.Buffer
	printSourceCounts(&buf, records)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(corpus.Sources())+1 {
		t.Fatalf("want %d lines, got %d:\n%s", len(corpus.Sources())+1, len(lines), buf.String())
	}
	if got := strings.Fields(lines[0]); got[0] != "tenant" || got[1] != "1" {
		t.Errorf("first line: got %v", got)
	}
	if got := strings.Fields(lines[3]); got[0] != "pupil" || got[1] != "2" {
		t.Errorf("pupil line: got %v", got)
	}
	if got := strings.Fields(lines[len(lines)-1]); got[0] != "total" || got[1] != "3" {
		t.Errorf("total line: got %v", got)
	}
}

func TestPrintHits(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	printHits(&buf, nil)
	if !strings.Contains(buf.String(), "no matching entries") {
		t.Errorf("empty result: got %q", buf.String())
	}

	buf.Reset()
	printHits(&buf, []rag.Hit{{
		Record: corpus.Record{
			Metadata:    corpus.Metadata{corpus.KeySource: "section", corpus.KeyTenantID: int64(3)},
			Description: "Odjeljenje I-1",
		},
		Score: 0.91,
	}})
	out := buf.String()
	for _, want := range []string{"1. [0.9100] section", "tenant=3", "Odjeljenje I-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}
