package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"provcore/internal/core"
)

func writeSeed(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "participants.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestLoadParsesFile(t *testing.T) {
	path := writeSeed(t, `
participants:
  - identity: acme
    role: manufacturer
  - identity: globex
    role: distributor
`)
	file, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(file.Participants) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(file.Participants))
	}
	if file.Participants[0].Identity != "acme" || file.Participants[0].Role != "manufacturer" {
		t.Fatalf("unexpected first entry: %+v", file.Participants[0])
	}
}

func TestLoadRejectsIncompleteEntries(t *testing.T) {
	path := writeSeed(t, "participants:\n  - identity: acme\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "role is required") {
		t.Fatalf("expected role error, got %v", err)
	}

	path = writeSeed(t, "participants:\n  - role: manufacturer\n")
	_, err = Load(path)
	if err == nil || !strings.Contains(err.Error(), "identity is required") {
		t.Fatalf("expected identity error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeSeed(t, "participants: [\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	svc := core.NewInMemoryService("admin")
	ctx := context.Background()
	file := File{Participants: []Entry{
		{Identity: "acme", Role: "manufacturer"},
		{Identity: "globex", Role: "distributor"},
	}}

	first, err := Apply(ctx, svc, "admin", file)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if first.Authorized != 2 || first.Skipped != 0 {
		t.Fatalf("unexpected first summary: %+v", first)
	}
	for _, identity := range []string{"acme", "globex"} {
		if !svc.IsAuthorized(ctx, identity) {
			t.Fatalf("%s should be authorized", identity)
		}
	}

	second, err := Apply(ctx, svc, "admin", file)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if second.Authorized != 0 || second.Skipped != 2 {
		t.Fatalf("unexpected second summary: %+v", second)
	}
}

func TestApplyToleratesAdminEntry(t *testing.T) {
	svc := core.NewInMemoryService("admin")
	file := File{Participants: []Entry{{Identity: "admin", Role: "admin"}}}

	summary, err := Apply(context.Background(), svc, "admin", file)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if summary.Authorized != 0 || summary.Skipped != 1 {
		t.Fatalf("expected admin entry to be skipped: %+v", summary)
	}
}

func TestApplyAbortsOnHardFailure(t *testing.T) {
	svc := core.NewInMemoryService("admin")
	file := File{Participants: []Entry{{Identity: "acme", Role: "manufacturer"}}}

	_, err := Apply(context.Background(), svc, "imposter", file)
	if err == nil || !strings.Contains(err.Error(), "seed participant acme") {
		t.Fatalf("expected wrapped authorization failure, got %v", err)
	}
}
