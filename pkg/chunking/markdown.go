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

package chunking

import (
	"github.com/docbridge/mcp-docs/pkg/docmodel"
)

// chunkMarkdown is the general Markdown chunking strategy: documents that
// already fit emit as a single chunk; otherwise split primarily at h2,
// falling back to h3 for any h2 section still too large, with each
// continuation piece re-prefixed by its own section's header line.
func chunkMarkdown(doc docmodel.Document, cfg Config) []piece {
	return chunkSectioned(doc, cfg, func(header string) string { return header })
}

// chunkSectioned implements the shared h2/h3/split_protected cascade used
// by the Markdown strategy and by the TypeDoc/JavaDoc demo and doc
// categories. continuationPrefix decides what gets prepended to every
// piece after the first one produced within a single section, so callers
// can choose between re-stating the section's own header line (Markdown,
// doc) or the document's title (demo).
func chunkSectioned(doc docmodel.Document, cfg Config, continuationPrefix func(header string) string) []piece {
	content := doc.Content
	if len(content) <= cfg.ChunkSize {
		return []piece{{Content: content}}
	}

	var pieces []piece
	for _, sec := range splitByHeaders(content, 2, 2) {
		pieces = append(pieces, splitSection(sec, cfg, continuationPrefix)...)
	}
	if len(pieces) == 0 {
		pieces = append(pieces, piece{Content: content})
	}
	return pieces
}

func splitSection(sec section, cfg Config, continuationPrefix func(string) string) []piece {
	if len(sec.Content) <= cfg.ChunkSize {
		return []piece{{Content: sec.Content, SectionPath: sec.Title}}
	}

	h3s := splitByHeaders(sec.Content, 3, 3)
	if len(h3s) <= 1 {
		return splitWithProtected(sec.Content, sec.Title, cfg, continuationPrefix)
	}

	var pieces []piece
	for _, h3 := range h3s {
		path := sec.Title
		if h3.Title != "" {
			if path != "" {
				path = path + " > " + h3.Title
			} else {
				path = h3.Title
			}
		}
		pieces = append(pieces, splitWithProtected(h3.Content, path, cfg, continuationPrefix)...)
	}
	return pieces
}

// splitWithProtected runs split_protected over one section/subsection's
// content and re-prepends continuationPrefix(header) to every piece after
// the first, so a reader landing on a later chunk still knows what section
// it came from.
func splitWithProtected(content, sectionPath string, cfg Config, continuationPrefix func(string) string) []piece {
	header := firstLine(content)

	var pieces []piece
	for i, sub := range splitProtected(content, cfg.ChunkSize) {
		c := sub
		if i > 0 && continuationPrefix != nil {
			c = continuationPrefix(header) + "\n\n" + sub
		}
		pieces = append(pieces, piece{Content: c, SectionPath: sectionPath})
	}
	return pieces
}
