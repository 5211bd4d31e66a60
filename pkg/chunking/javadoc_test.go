package chunking

import (
	"strings"
	"testing"

	"github.com/docbridge/mcp-docs/pkg/docmodel"
)

func javaDocFixture(methodCount int) string {
	var b strings.Builder
	b.WriteString("# Workbook\n\n")
	b.WriteString("package com.grapecity.documents.excel\n\n")
	b.WriteString("## Method Summary\n\nsummary table noise\n\n")
	b.WriteString("## Method Details\n\n")
	for i := 0; i < methodCount; i++ {
		b.WriteString("### method" + strings.Repeat("x", i+1) + "\n")
		b.WriteString(strings.Repeat("description words here ", 10) + "\n\n")
	}
	return b.String()
}

func TestChunkJavaDocAPIGroupsMethodsUnderHeader(t *testing.T) {
	doc := docmodel.Document{ID: "wb", Title: "Workbook", Category: "api", Content: javaDocFixture(5)}
	chunker, _ := New("javadoc", Config{ChunkSize: 200, MinChunkSize: 10})
	chunks := chunker.Chunk(doc)
	if len(chunks) < 2 {
		t.Fatalf("Chunk() returned %d chunks, want more than 1", len(chunks))
	}
	for _, c := range chunks {
		if !strings.Contains(c.Content, "package com.grapecity.documents.excel") {
			t.Errorf("chunk missing class header: %q", c.Content)
		}
	}
}

func TestChunkJavaDocAPIFallsBackWithTooFewMethods(t *testing.T) {
	doc := docmodel.Document{ID: "wb2", Title: "Tiny", Category: "api", Content: javaDocFixture(1) + strings.Repeat("filler ", 200)}
	chunker, _ := New("javadoc", Config{ChunkSize: 200, MinChunkSize: 10})
	chunks := chunker.Chunk(doc)
	if len(chunks) == 0 {
		t.Fatal("Chunk() returned no chunks")
	}
}

func TestChunkJavaDocDemoPrefixesTitle(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Demo\n\n")
	for i := 0; i < 3; i++ {
		b.WriteString("## Step\n")
		b.WriteString(strings.Repeat("word ", 30))
		b.WriteString("\n\n")
	}
	doc := docmodel.Document{ID: "d1", Title: "Import Demo", Category: "demo", Content: b.String()}
	chunker, _ := New("javadoc", Config{ChunkSize: 120, MinChunkSize: 10})
	chunks := chunker.Chunk(doc)
	if len(chunks) < 2 {
		t.Fatalf("Chunk() returned %d chunks, want more than 1", len(chunks))
	}
	foundPrefixed := false
	for _, c := range chunks[1:] {
		if strings.HasPrefix(c.Content, "Import Demo") {
			foundPrefixed = true
		}
	}
	if !foundPrefixed {
		t.Error("no continuation chunk was prefixed with the document title")
	}
}
