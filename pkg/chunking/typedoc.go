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
	"strings"

	"github.com/docbridge/mcp-docs/pkg/docmodel"
)

// tocHeaderSkip names the h2 sections TypeDoc emits before real API content
// starts (the generated table of contents and class hierarchy diagram).
var tocHeaderSkip = map[string]bool{
	"Content":             true,
	"Table of contents":   true,
	"Hierarchy":           true,
}

// chunkTypeDoc dispatches by document category: "api" pages get
// member-aware grouping around the class header, "demo" pages re-prefix
// continuations with the document title, everything else chunks like
// plain Markdown.
func chunkTypeDoc(doc docmodel.Document, cfg Config) []piece {
	content := doc.Content
	if len(content) <= cfg.ChunkSize {
		return []piece{{Content: content}}
	}

	switch doc.Category {
	case "api":
		return chunkTypeDocAPI(doc, cfg)
	case "demo":
		return chunkSectioned(doc, cfg, func(string) string { return doc.Title })
	default:
		return chunkMarkdown(doc, cfg)
	}
}

// chunkTypeDocAPI keeps the class's h1 header attached to every emitted
// chunk (prepended with a "---" separator) and groups consecutive h2/h3
// members up to the remaining size budget, skipping TypeDoc's generated
// TOC/hierarchy preamble.
func chunkTypeDocAPI(doc docmodel.Document, cfg Config) []piece {
	content := doc.Content

	classHeader := ""
	body := content
	if h1s := splitByHeaders(content, 1, 1); len(h1s) > 0 {
		classHeader = firstLine(h1s[0].Content)
		body = h1s[0].Content
	}

	h2Sections := splitByHeaders(body, 2, 2)
	startIdx := len(h2Sections)
	for i, s := range h2Sections {
		if s.Level != 2 {
			continue // preamble before the first real h2, e.g. the class header line
		}
		if tocHeaderSkip[s.Title] {
			continue
		}
		startIdx = i
		break
	}
	var relevant []section
	if startIdx < len(h2Sections) {
		relevant = h2Sections[startIdx:]
	}

	var members []piece
	for _, h2 := range relevant {
		h3s := splitByHeaders(h2.Content, 3, 3)
		if len(h3s) <= 1 {
			members = append(members, piece{Content: h2.Content, SectionPath: h2.Title})
			continue
		}
		for _, h3 := range h3s {
			path := h2.Title
			if h3.Title != "" {
				path = h2.Title + " > " + h3.Title
			}
			members = append(members, piece{Content: h3.Content, SectionPath: path})
		}
	}

	var filtered []piece
	for _, m := range members {
		if len(strings.TrimSpace(m.Content)) >= cfg.MinChunkSize {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) == 0 {
		filtered = members
	}

	budget := cfg.ChunkSize - len(classHeader) - len("\n\n---\n\n")
	if budget < 1 {
		budget = cfg.ChunkSize
	}

	var pieces []piece
	var acc strings.Builder
	var accPaths []string

	flush := func() {
		if acc.Len() == 0 {
			return
		}
		pieces = append(pieces, piece{
			Content:     classHeader + "\n\n---\n\n" + acc.String(),
			SectionPath: strings.Join(accPaths, "; "),
		})
		acc.Reset()
		accPaths = nil
	}

	for _, m := range filtered {
		if acc.Len() > 0 && acc.Len()+len(m.Content) > budget {
			flush()
		}
		if acc.Len() > 0 {
			acc.WriteString("\n\n")
		}
		acc.WriteString(m.Content)
		accPaths = append(accPaths, m.SectionPath)
	}
	flush()

	if len(pieces) == 0 {
		pieces = append(pieces, piece{Content: content})
	}
	return pieces
}
