// Package docmodel defines the core data types shared by the loader,
// chunkers, indexer, and searcher: documents, their chunks, the collection
// they live in, and the deterministic point identity used to make
// re-ingestion idempotent.
package docmodel

import (
	"crypto/sha1"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// pointNamespace anchors the deterministic UUIDv5 point IDs so the same
// chunk identifier always hashes to the same point, across process restarts
// and across machines.
var pointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// categoryByTopDir maps a corpus's top-level directory name to the document
// category stored on every document beneath it.
var categoryByTopDir = map[string]string{
	"apis":  "api",
	"docs":  "doc",
	"demos": "demo",
}

// CategoryForPath returns the category for a relative path's first
// component, or "" if the top directory has no known mapping.
func CategoryForPath(relPath string) string {
	relPath = strings.TrimPrefix(relPath, "/")
	parts := strings.SplitN(relPath, "/", 2)
	return categoryByTopDir[parts[0]]
}

// DocumentID derives a document's stable identifier from its corpus-relative
// path: separators collapse to underscores and the extension is dropped.
func DocumentID(relPath string) string {
	trimmed := strings.TrimSuffix(relPath, extOf(relPath))
	return strings.ReplaceAll(trimmed, "/", "_")
}

func extOf(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 && !strings.Contains(path[i:], "/") {
		return path[i:]
	}
	return ""
}

// Document is one source file discovered by the loader: a whole markdown
// (or TypeDoc/JavaDoc-flavored) page before chunking.
type Document struct {
	ID            string // path separators collapsed to underscores, extension stripped
	Product       string
	Language      string
	Category      string // api | doc | demo, derived from the top-level directory
	RelativePath  string // path relative to the corpus base directory
	PathHierarchy []string
	Title         string
	Content       string // sanitized Markdown content
	ContentHash   string // sha1 of Content, used for change detection
	LastModified  int64  // unix seconds
	Size          int64  // bytes
}

// Chunk is one retrievable unit produced by a Chunker from a Document.
// ID follows "{doc_id}_chunk{N}" with N dense starting at 0.
type Chunk struct {
	ID           string
	DocumentID   string
	Product      string
	Language     string
	Category     string
	ChunkIndex   int
	TotalChunks  int    // backfilled once the document's chunk count is known
	SectionPath  string // breadcrumb of enclosing headers, e.g. "Installation > Prerequisites"
	DocTOC       string // table of contents of the owning document, repeated per chunk
	Title        string
	RelativePath string
	Content      string
	HasCodeBlock bool
}

// ChunkID formats the stable chunk identifier for a document and index.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk%d", documentID, index)
}

// Collection names a product+language's searchable corpus in the vector store.
type Collection struct {
	Product     string
	Language    string
	Name        string // derived, e.g. "spreadjs_en"
	DocLanguage string // natural language of the documents themselves (may differ from query language)
	DenseDims   int
}

// PointID derives a stable, idempotent point identifier for a chunk from its
// string chunk ID, so re-ingesting the same chunks overwrites rather than
// duplicates points in the vector store.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// ContentHash returns the sha1 hex digest of content; the loader stores it in
// Document.ContentHash.
func ContentHash(content string) string {
	sum := sha1.Sum([]byte(content))
	return fmt.Sprintf("%x", sum)
}
