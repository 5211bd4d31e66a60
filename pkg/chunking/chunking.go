// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chunking splits a loaded Document into retrievable Chunks. Three
// strategies (markdown, typedoc, javadoc) share a common set of
// header-splitting and size-bounded splitting primitives and a common
// post-processing pass that backfills TotalChunks/DocTOC and discards
// chunks too small or empty to be useful.
package chunking

import (
	"fmt"
	"strings"

	"github.com/docbridge/mcp-docs/pkg/docmodel"
)

const (
	defaultChunkSize    = 3000
	defaultMinChunkSize = 100
)

// Config tunes a Chunker. Zero values are replaced with defaults.
type Config struct {
	ChunkSize    int
	MinChunkSize int
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.MinChunkSize <= 0 {
		c.MinChunkSize = defaultMinChunkSize
	}
	return c
}

// Chunker splits one Document into an ordered sequence of Chunks.
type Chunker interface {
	Chunk(doc docmodel.Document) []docmodel.Chunk
}

// New constructs the Chunker for a product's declared chunker_type.
func New(strategy string, cfg Config) (Chunker, error) {
	cfg = cfg.withDefaults()
	switch strategy {
	case "markdown":
		return markdownChunker{cfg}, nil
	case "typedoc":
		return typeDocChunker{cfg}, nil
	case "javadoc":
		return javaDocChunker{cfg}, nil
	default:
		return nil, fmt.Errorf("chunking: unknown strategy %q, want markdown|typedoc|javadoc", strategy)
	}
}

// piece is a chunk candidate before backfill and edge-case filtering:
// strategies produce pieces, assemble turns them into docmodel.Chunk.
type piece struct {
	Content     string
	SectionPath string
}

type markdownChunker struct{ cfg Config }

func (m markdownChunker) Chunk(doc docmodel.Document) []docmodel.Chunk {
	return assemble(doc, chunkMarkdown(doc, m.cfg), m.cfg)
}

type typeDocChunker struct{ cfg Config }

func (t typeDocChunker) Chunk(doc docmodel.Document) []docmodel.Chunk {
	return assemble(doc, chunkTypeDoc(doc, t.cfg), t.cfg)
}

type javaDocChunker struct{ cfg Config }

func (j javaDocChunker) Chunk(doc docmodel.Document) []docmodel.Chunk {
	return assemble(doc, chunkJavaDoc(doc, j.cfg), j.cfg)
}

// assemble discards whitespace-only pieces and pieces below MinChunkSize
// (unless it is the document's only surviving piece), then backfills
// TotalChunks and DocTOC across the final set.
func assemble(doc docmodel.Document, pieces []piece, cfg Config) []docmodel.Chunk {
	var nonEmpty []piece
	for _, p := range pieces {
		if strings.TrimSpace(p.Content) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}

	var filtered []piece
	for _, p := range nonEmpty {
		if len(strings.TrimSpace(p.Content)) < cfg.MinChunkSize && len(nonEmpty) > 1 {
			continue
		}
		filtered = append(filtered, p)
	}
	if len(filtered) == 0 {
		filtered = nonEmpty
	}

	toc := extractTOC(doc.Content)
	chunks := make([]docmodel.Chunk, len(filtered))
	for i, p := range filtered {
		chunks[i] = docmodel.Chunk{
			ID:           docmodel.ChunkID(doc.ID, i),
			DocumentID:   doc.ID,
			Product:      doc.Product,
			Language:     doc.Language,
			Category:     doc.Category,
			ChunkIndex:   i,
			TotalChunks:  len(filtered),
			SectionPath:  p.SectionPath,
			DocTOC:       toc,
			Title:        doc.Title,
			RelativePath: doc.RelativePath,
			Content:      p.Content,
			HasCodeBlock: strings.Contains(p.Content, "```"),
		}
	}
	return chunks
}
