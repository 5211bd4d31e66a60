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

package loader

import (
	"fmt"
	"regexp"
	"strings"
)

// This isn't general-purpose untrusted-HTML sanitization (no library in the
// corpus targets it); it's narrow cleanup of the residue Word and Confluence
// leave behind in exported Markdown: nested <span> wrappers, inline
// style/class noise, and stray <br> tags. Fenced code blocks are protected
// for the duration so none of these rewrites ever touches code.

var (
	fencedCodeBlock = regexp.MustCompile("(?s)```.*?```")
	nestedSpanOpen  = regexp.MustCompile(`(?is)(<span[^>]*>)\s*<span[^>]*>`)
	nestedSpanClose = regexp.MustCompile(`(?is)</span>\s*(</span>)`)
	emptySpanTag    = regexp.MustCompile(`(?is)<span[^>]*>\s*</span>`)
	anySpanTag      = regexp.MustCompile(`(?is)</?span[^>]*>`)
	brTag           = regexp.MustCompile(`(?i)<br\s*/?>`)
	styleAttr       = regexp.MustCompile(`(?i)\s+style="[^"]*"`)
	classAttr       = regexp.MustCompile(`(?i)\s+class="[^"]*"`)
	ccpPropsAttr    = regexp.MustCompile(`(?i)\s+data-ccp-props="[^"]*"`)
	excessNewlines  = regexp.MustCompile(`\n{3,}`)
	excessSpaces    = regexp.MustCompile(` {2,}`)
	maxSpanDepth    = 5
)

const codePlaceholderFmt = "\x00CODEBLOCK%d\x00"

// SanitizeHTML strips HTML residue left by Word/Confluence Markdown exports
// while protecting fenced code blocks from the rewrite passes.
func SanitizeHTML(content string) string {
	var blocks []string
	protected := fencedCodeBlock.ReplaceAllStringFunc(content, func(block string) string {
		placeholder := fmt.Sprintf(codePlaceholderFmt, len(blocks))
		blocks = append(blocks, block)
		return placeholder
	})

	// Collapse up to 5 levels of directly-nested <span> wrappers down to a
	// single layer before deciding which spans are empty or should be
	// unwrapped; this keeps the next two passes from having to reason about
	// nesting depth at all.
	for i := 0; i < maxSpanDepth; i++ {
		next := nestedSpanOpen.ReplaceAllString(protected, "$1")
		next = nestedSpanClose.ReplaceAllString(next, "$1")
		if next == protected {
			break
		}
		protected = next
	}

	protected = emptySpanTag.ReplaceAllString(protected, "")
	protected = anySpanTag.ReplaceAllString(protected, "")
	protected = brTag.ReplaceAllString(protected, "\n")
	protected = styleAttr.ReplaceAllString(protected, "")
	protected = classAttr.ReplaceAllString(protected, "")
	protected = ccpPropsAttr.ReplaceAllString(protected, "")

	protected = excessNewlines.ReplaceAllString(protected, "\n\n")
	protected = excessSpaces.ReplaceAllString(protected, " ")

	for i, block := range blocks {
		placeholder := fmt.Sprintf(codePlaceholderFmt, i)
		protected = strings.Replace(protected, placeholder, block, 1)
	}

	return protected
}
