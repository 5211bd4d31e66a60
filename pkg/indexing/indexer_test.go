package indexing

import (
	"testing"

	"github.com/docbridge/mcp-docs/pkg/docmodel"
)

func TestResumeIndexFindsChunkAfterLastProcessed(t *testing.T) {
	chunks := []docmodel.Chunk{{ID: "a_chunk0"}, {ID: "a_chunk1"}, {ID: "a_chunk2"}}
	if got := resumeIndex(chunks, "a_chunk1"); got != 2 {
		t.Errorf("resumeIndex() = %d, want 2", got)
	}
}

func TestResumeIndexUnknownIDRestartsFromZero(t *testing.T) {
	chunks := []docmodel.Chunk{{ID: "a_chunk0"}, {ID: "a_chunk1"}}
	if got := resumeIndex(chunks, "stale_chunk9"); got != 0 {
		t.Errorf("resumeIndex() = %d, want 0", got)
	}
}

func TestResumeIndexLastChunkReturnsLength(t *testing.T) {
	chunks := []docmodel.Chunk{{ID: "a_chunk0"}, {ID: "a_chunk1"}}
	if got := resumeIndex(chunks, "a_chunk1"); got != len(chunks) {
		t.Errorf("resumeIndex() = %d, want %d (nothing left to process)", got, len(chunks))
	}
}

func TestChunkPayloadCarriesCoreFields(t *testing.T) {
	c := docmodel.Chunk{
		ID: "doc_chunk0", DocumentID: "doc", Product: "spreadjs", Language: "en",
		Category: "doc", ChunkIndex: 0, TotalChunks: 3, SectionPath: "Intro",
		Title: "Intro", RelativePath: "docs/intro.md", Content: "hello", HasCodeBlock: false,
	}
	payload := chunkPayload(c)
	if payload["doc_id"] != "doc" || payload["chunk_id"] != "doc_chunk0" {
		t.Errorf("payload missing identity fields: %+v", payload)
	}
	if payload["content"] != "hello" {
		t.Errorf("payload content = %v, want %q", payload["content"], "hello")
	}
	if payload["has_code_block"] != false {
		t.Errorf("payload has_code_block = %v, want false", payload["has_code_block"])
	}
}
