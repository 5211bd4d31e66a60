package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, base, rel, content string) {
	t.Helper()
	full := filepath.Join(base, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll(%s) error = %v", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", full, err)
	}
}

func TestLoaderLoadDerivesDocumentMetadata(t *testing.T) {
	base := t.TempDir()
	writeFixture(t, base, "docs/getting-started.md", "# Getting Started\n\nHello world.")

	l := New(Config{
		BaseDir:    base,
		DocSubdirs: []string{"docs"},
		Product:    "spreadjs",
		Language:   "en",
	})

	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Load() returned %d docs, want 1", len(docs))
	}

	doc := docs[0]
	if doc.RelativePath != "docs/getting-started.md" {
		t.Errorf("RelativePath = %q", doc.RelativePath)
	}
	if doc.Category != "doc" {
		t.Errorf("Category = %q, want doc", doc.Category)
	}
	if doc.Title != "getting-started" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.Product != "spreadjs" || doc.Language != "en" {
		t.Errorf("Product/Language = %q/%q", doc.Product, doc.Language)
	}
	if doc.Content != "# Getting Started\n\nHello world." {
		t.Errorf("Content = %q", doc.Content)
	}
	if doc.ContentHash == "" {
		t.Error("ContentHash is empty")
	}
}

func TestLoaderLoadSkipsEmptyFiles(t *testing.T) {
	base := t.TempDir()
	writeFixture(t, base, "docs/empty.md", "   \n\n  ")
	writeFixture(t, base, "docs/real.md", "actual content")

	l := New(Config{BaseDir: base, DocSubdirs: []string{"docs"}, Product: "p", Language: "en"})
	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Load() returned %d docs, want 1 (empty file skipped)", len(docs))
	}
}

func TestLoaderLoadIgnoresNonMarkdownFiles(t *testing.T) {
	base := t.TempDir()
	writeFixture(t, base, "docs/notes.txt", "not markdown")
	writeFixture(t, base, "docs/real.md", "actual content")

	l := New(Config{BaseDir: base, DocSubdirs: []string{"docs"}, Product: "p", Language: "en"})
	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Load() returned %d docs, want 1 (non-.md ignored)", len(docs))
	}
}

func TestLoaderLoadSkipsMissingSubdir(t *testing.T) {
	base := t.TempDir()
	writeFixture(t, base, "docs/real.md", "actual content")

	l := New(Config{BaseDir: base, DocSubdirs: []string{"docs", "apis"}, Product: "p", Language: "en"})
	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v, want missing subdir to be tolerated", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Load() returned %d docs, want 1", len(docs))
	}
}

func TestLoaderLoadRespectsCanceledContext(t *testing.T) {
	base := t.TempDir()
	writeFixture(t, base, "docs/real.md", "actual content")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := New(Config{BaseDir: base, DocSubdirs: []string{"docs"}, Product: "p", Language: "en"})
	if _, err := l.Load(ctx); err == nil {
		t.Error("Load() with canceled context returned nil error")
	}
}
