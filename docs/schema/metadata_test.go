package schema

import "testing"

func TestDocumentInfo(t *testing.T) {
	got, err := DocumentInfo()
	if err != nil {
		t.Fatalf("DocumentInfo: %v", err)
	}
	if got.Title == "" || got.Version == "" {
		t.Fatalf("expected title and version, got %+v", got)
	}
}

func TestDocumentVersion(t *testing.T) {
	if got := DocumentVersion(); got == "" {
		t.Fatal("expected non-empty document version")
	}
}
