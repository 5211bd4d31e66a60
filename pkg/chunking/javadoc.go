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
	"regexp"
	"strings"

	"github.com/docbridge/mcp-docs/pkg/docmodel"
)

var (
	methodSummaryMarker = regexp.MustCompile(`(?m)^##\s+(Method Summary|Field Summary)\s*$`)
	methodDetailMarker  = regexp.MustCompile(`(?m)^##\s+Method Detail[s]?\s*$`)
	methodSplitRegex    = regexp.MustCompile(`(?m)^\s*\+?\s*###\s+\w+`)
)

// chunkJavaDoc dispatches by category like chunkTypeDoc: "api" pages group
// method/field entries around the class header, "demo" pages re-prefix
// continuations with the title, everything else chunks like Markdown.
func chunkJavaDoc(doc docmodel.Document, cfg Config) []piece {
	content := doc.Content
	if len(content) <= cfg.ChunkSize {
		return []piece{{Content: content}}
	}

	switch doc.Category {
	case "api":
		return chunkJavaDocAPI(doc, cfg)
	case "demo":
		return chunkSectioned(doc, cfg, func(string) string { return doc.Title })
	default:
		return chunkMarkdown(doc, cfg)
	}
}

// chunkJavaDocAPI locates the class header by scanning the first 30 lines
// for a "## Method Summary"/"## Field Summary" marker (falling back to a
// fixed 15-line header when no marker is found), then splits the body
// after "## Method Detail(s)" into individual "### methodName" entries and
// groups them up to the size budget, each group re-prefixed with the class
// header. Pages with fewer than 3 method entries fall back to
// split_protected over the whole document: there isn't enough structure to
// group by member.
func chunkJavaDocAPI(doc docmodel.Document, cfg Config) []piece {
	content := doc.Content
	lines := strings.Split(content, "\n")

	scanLimit := 30
	if scanLimit > len(lines) {
		scanLimit = len(lines)
	}
	scanRegion := strings.Join(lines[:scanLimit], "\n")

	var header string
	if loc := methodSummaryMarker.FindStringIndex(scanRegion); loc != nil {
		header = content[:loc[0]]
	} else {
		fallback := 15
		if fallback > len(lines) {
			fallback = len(lines)
		}
		header = strings.Join(lines[:fallback], "\n")
	}

	fallback := func() []piece {
		return splitWithProtected(content, "", cfg, func(h string) string { return h })
	}

	detailLoc := methodDetailMarker.FindStringIndex(content)
	if detailLoc == nil {
		return fallback()
	}
	body := content[detailLoc[1]:]

	splitIdx := methodSplitRegex.FindAllStringIndex(body, -1)
	if len(splitIdx) < 3 {
		return fallback()
	}

	var methods []piece
	for i, loc := range splitIdx {
		end := len(body)
		if i+1 < len(splitIdx) {
			end = splitIdx[i+1][0]
		}
		entry := strings.TrimSpace(body[loc[0]:end])
		methods = append(methods, piece{Content: entry, SectionPath: firstLine(entry)})
	}

	budget := cfg.ChunkSize - len(header) - len("\n\n---\n\n")
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
			Content:     header + "\n\n---\n\n" + acc.String(),
			SectionPath: strings.Join(accPaths, "; "),
		})
		acc.Reset()
		accPaths = nil
	}

	for _, m := range methods {
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
		pieces = fallback()
	}
	return pieces
}
