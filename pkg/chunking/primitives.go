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
)

var headerLineRegex = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.+?)[ \t]*$`)

// section is one ATX-header-delimited region of a document. Content always
// begins with the header line itself, so re-splitting a section's Content
// recovers its own header.
type section struct {
	Level int
	Title string
	Content string
}

// splitByHeaders splits content at ATX headers whose level falls in
// [minLevel, maxLevel], each returned section's Content starting with its
// own header line. Content preceding the first matching header (or a
// headerless document entirely) becomes a single Level-0 section with an
// empty Title.
func splitByHeaders(content string, minLevel, maxLevel int) []section {
	lines := strings.Split(content, "\n")

	var sections []section
	var cur *section
	var body []string

	flush := func() {
		if cur == nil {
			return
		}
		cur.Content = strings.Join(body, "\n")
		sections = append(sections, *cur)
	}

	for _, line := range lines {
		if m := headerLineRegex.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			if level >= minLevel && level <= maxLevel {
				flush()
				cur = &section{Level: level, Title: strings.TrimSpace(m[2])}
				body = []string{line}
				continue
			}
		}
		if cur == nil {
			cur = &section{}
			body = nil
		}
		body = append(body, line)
	}
	flush()

	return sections
}

// firstLine returns the first line of s, or s itself if s has no newline.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// extractTOC renders a document's header outline, one line per header,
// indented two spaces per level beyond the first.
func extractTOC(content string) string {
	var lines []string
	for _, m := range headerLineRegex.FindAllStringSubmatch(content, -1) {
		level := len(m[1])
		indent := strings.Repeat("  ", level-1)
		lines = append(lines, indent+strings.TrimSpace(m[2]))
	}
	return strings.Join(lines, "\n")
}

var fenceBlockRegex = regexp.MustCompile("(?s)```.*?```")

type textSegment struct {
	isCode  bool
	content string
}

// splitIntoCodeAndText partitions text into alternating code/non-code
// segments along fenced code block boundaries.
func splitIntoCodeAndText(text string) []textSegment {
	var segs []textSegment
	last := 0
	for _, m := range fenceBlockRegex.FindAllStringIndex(text, -1) {
		if m[0] > last {
			segs = append(segs, textSegment{false, text[last:m[0]]})
		}
		segs = append(segs, textSegment{true, text[m[0]:m[1]]})
		last = m[1]
	}
	if last < len(text) {
		segs = append(segs, textSegment{false, text[last:]})
	}
	return segs
}

// splitProtected bounds text into chunkSize-ish pieces without ever
// breaking a fenced code block in the middle, unless the block itself is
// too large to keep whole. Non-code text is cut at the best available
// break point, preferring blank lines over single newlines over sentence
// punctuation over a hard cut.
func splitProtected(text string, chunkSize int) []string {
	var chunks []string
	var acc strings.Builder

	flush := func() {
		if acc.Len() > 0 {
			chunks = append(chunks, acc.String())
			acc.Reset()
		}
	}

	for _, seg := range splitIntoCodeAndText(text) {
		if seg.isCode {
			if len(seg.content) > chunkSize*3 {
				flush()
				chunks = append(chunks, splitCodeBlock(seg.content, chunkSize)...)
				continue
			}
			if acc.Len() == 0 || acc.Len()+len(seg.content) <= chunkSize+chunkSize/2 {
				acc.WriteString(seg.content)
				continue
			}
			flush()
			acc.WriteString(seg.content)
			continue
		}

		remaining := seg.content
		for len(remaining) > 0 {
			space := chunkSize - acc.Len()
			if space <= 0 {
				flush()
				space = chunkSize
			}
			if len(remaining) <= space {
				acc.WriteString(remaining)
				remaining = ""
				break
			}
			cut := findBreakPoint(remaining, space)
			if cut <= 0 {
				cut = space
			}
			acc.WriteString(remaining[:cut])
			flush()
			remaining = remaining[cut:]
		}
	}
	flush()

	return chunks
}

// findBreakPoint finds the best place to cut text at or before limit,
// preferring (in order) a blank line, a single newline, a sentence-ending
// "." or "。" followed by whitespace/end-of-string, falling back to a hard
// cut at limit. A candidate below half of limit is rejected as too small.
func findBreakPoint(text string, limit int) int {
	if limit >= len(text) {
		return len(text)
	}
	half := limit / 2

	if idx := strings.LastIndex(text[:limit], "\n\n"); idx >= half {
		return idx + len("\n\n")
	}
	if idx := strings.LastIndex(text[:limit], "\n"); idx >= half {
		return idx + 1
	}
	if idx := lastSentenceBreak(text, limit, half, "。"); idx >= 0 {
		return idx
	}
	if idx := lastSentenceBreak(text, limit, half, "."); idx >= 0 {
		return idx
	}
	return limit
}

// lastSentenceBreak finds the rightmost occurrence of sep within text[:limit]
// that is followed by whitespace or end-of-string (so "example.com" doesn't
// count), walking backward past false hits, and rejects anything before half.
func lastSentenceBreak(text string, limit, half int, sep string) int {
	search := text[:limit]
	for {
		idx := strings.LastIndex(search, sep)
		if idx < 0 || idx < half {
			return -1
		}
		end := idx + len(sep)
		if end >= len(text) || isBreakWhitespace(text[end]) {
			return end
		}
		search = search[:idx]
	}
}

func isBreakWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

var blankLineRegex = regexp.MustCompile(`\n[ \t]*\n`)

// splitCodeBlock explodes an oversized fenced code block, preserving its
// fence on every emitted piece. It splits first on blank lines, falling
// back to single lines if that yields only one piece, then hard-slices any
// individual line that alone exceeds chunkSize (e.g. a base64 blob).
func splitCodeBlock(block string, chunkSize int) []string {
	open, body, closeLine, ok := extractFence(block)
	if !ok {
		return []string{block}
	}

	pieces := blankLineRegex.Split(body, -1)
	if len(pieces) <= 1 {
		pieces = strings.Split(body, "\n")
	}

	var result []string
	for _, p := range pieces {
		for _, sliced := range hardSliceLongLines(p, chunkSize) {
			if strings.TrimSpace(sliced) == "" {
				continue
			}
			result = append(result, open+"\n"+sliced+"\n"+closeLine)
		}
	}
	if len(result) == 0 {
		result = []string{block}
	}
	return result
}

// extractFence splits a fenced code block into its opening fence line
// (with language tag, if any), interior body, and closing fence line.
func extractFence(block string) (open, body, closeLine string, ok bool) {
	lines := strings.Split(block, "\n")
	if len(lines) < 2 {
		return "", "", "", false
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		return "", "", "", false
	}
	last := len(lines) - 1
	if !strings.HasPrefix(strings.TrimSpace(lines[last]), "```") {
		return "", "", "", false
	}
	return lines[0], strings.Join(lines[1:last], "\n"), lines[last], true
}

// hardSliceLongLines groups piece's lines back together except where a
// single line exceeds chunkSize, in which case that line is hard-sliced
// into chunkSize-byte segments emitted on their own.
func hardSliceLongLines(piece string, chunkSize int) []string {
	var out []string
	var buf []string

	flush := func() {
		if len(buf) > 0 {
			out = append(out, strings.Join(buf, "\n"))
			buf = nil
		}
	}

	for _, line := range strings.Split(piece, "\n") {
		if len(line) > chunkSize {
			flush()
			for len(line) > chunkSize {
				out = append(out, line[:chunkSize])
				line = line[chunkSize:]
			}
			if len(line) > 0 {
				out = append(out, line)
			}
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return out
}
