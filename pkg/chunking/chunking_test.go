package chunking

import (
	"strings"
	"testing"

	"github.com/docbridge/mcp-docs/pkg/docmodel"
)

func TestNewUnknownStrategy(t *testing.T) {
	if _, err := New("cobol", Config{}); err == nil {
		t.Error("New() with unknown strategy returned nil error")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c, err := New("markdown", Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	mc, ok := c.(markdownChunker)
	if !ok {
		t.Fatalf("New() returned %T, want markdownChunker", c)
	}
	if mc.cfg.ChunkSize != defaultChunkSize || mc.cfg.MinChunkSize != defaultMinChunkSize {
		t.Errorf("New() cfg = %+v, want defaults applied", mc.cfg)
	}
}

func TestMarkdownChunkerSmallDocIsSingleChunk(t *testing.T) {
	doc := docmodel.Document{ID: "doc1", Content: "# Title\n\nshort body"}
	chunker, _ := New("markdown", Config{ChunkSize: 3000, MinChunkSize: 10})
	chunks := chunker.Chunk(doc)
	if len(chunks) != 1 {
		t.Fatalf("Chunk() returned %d chunks, want 1", len(chunks))
	}
	if chunks[0].TotalChunks != 1 || chunks[0].ChunkIndex != 0 {
		t.Errorf("chunk metadata = %+v", chunks[0])
	}
	if chunks[0].ID != docmodel.ChunkID("doc1", 0) {
		t.Errorf("chunk ID = %q", chunks[0].ID)
	}
}

func TestMarkdownChunkerSplitsAtH2(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Doc\n\n")
	for i := 0; i < 3; i++ {
		b.WriteString("## Section\n")
		b.WriteString(strings.Repeat("word ", 30))
		b.WriteString("\n\n")
	}
	doc := docmodel.Document{ID: "doc2", Content: b.String()}
	chunker, _ := New("markdown", Config{ChunkSize: 120, MinChunkSize: 10})
	chunks := chunker.Chunk(doc)
	if len(chunks) < 2 {
		t.Fatalf("Chunk() returned %d chunks, want more than 1", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has ChunkIndex %d", i, c.ChunkIndex)
		}
		if c.TotalChunks != len(chunks) {
			t.Errorf("chunk %d TotalChunks = %d, want %d", i, c.TotalChunks, len(chunks))
		}
	}
}

func TestAssembleDropsWhitespaceOnlyPieces(t *testing.T) {
	doc := docmodel.Document{ID: "doc3", Content: "content"}
	pieces := []piece{{Content: "real content here"}, {Content: "   \n  "}}
	chunks := assemble(doc, pieces, Config{ChunkSize: 3000, MinChunkSize: 1})
	if len(chunks) != 1 {
		t.Fatalf("assemble() returned %d chunks, want 1", len(chunks))
	}
	if chunks[0].Content != "real content here" {
		t.Errorf("surviving chunk = %q", chunks[0].Content)
	}
}

func TestAssembleKeepsSoleChunkBelowMinSize(t *testing.T) {
	doc := docmodel.Document{ID: "doc4", Content: "x"}
	pieces := []piece{{Content: "hi"}}
	chunks := assemble(doc, pieces, Config{ChunkSize: 3000, MinChunkSize: 100})
	if len(chunks) != 1 {
		t.Fatalf("assemble() dropped the only chunk: got %d", len(chunks))
	}
}

func TestAssembleDropsUndersizedNonSoleChunks(t *testing.T) {
	doc := docmodel.Document{ID: "doc5", Content: "x"}
	pieces := []piece{
		{Content: strings.Repeat("word ", 50)},
		{Content: "tiny"},
	}
	chunks := assemble(doc, pieces, Config{ChunkSize: 3000, MinChunkSize: 20})
	if len(chunks) != 1 {
		t.Fatalf("assemble() returned %d chunks, want 1 (tiny piece dropped)", len(chunks))
	}
}

func TestAssembleHasCodeBlockFlag(t *testing.T) {
	doc := docmodel.Document{ID: "doc6", Content: "x"}
	pieces := []piece{{Content: "has a ```block``` inline"}}
	chunks := assemble(doc, pieces, Config{ChunkSize: 3000, MinChunkSize: 1})
	if !chunks[0].HasCodeBlock {
		t.Error("HasCodeBlock = false, want true")
	}
}
