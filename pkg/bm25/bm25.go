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

// Package bm25 tokenizes chunk and query text into the raw term-frequency
// sparse vectors Qdrant's BM25 modifier expects. Qdrant computes the actual
// IDF weighting server-side from collection-wide term statistics once given
// these raw counts; this package only tokenizes and counts.
package bm25

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// tokenRegex matches alphanumeric runs, underscores included for the
// subsequent camelCase/snake_case split.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// stopWords holds identifier noise filtered before counting: generic
// programming keywords and variable names that carry no retrieval signal
// in documentation prose or code samples.
var stopWords = buildStopWordSet([]string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while", "switch", "case",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
	"the", "a", "an", "of", "to", "in", "on", "is", "are", "and", "or",
})

func buildStopWordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Tokenize splits text with code-aware rules: camelCase, PascalCase, and
// snake_case identifiers are split into their constituent words, every
// token is lowercased, and tokens shorter than 2 characters or present in
// the stop word set are dropped.
func Tokenize(text string) []string {
	var tokens []string

	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitIdentifier(word) {
			lower := strings.ToLower(t)
			if len(lower) < 2 {
				continue
			}
			if _, stop := stopWords[lower]; stop {
				continue
			}
			tokens = append(tokens, lower)
		}
	}

	return tokens
}

// splitIdentifier splits snake_case on underscores, then splits each part
// on camelCase/PascalCase boundaries.
func splitIdentifier(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

// splitCamelCase splits camelCase and PascalCase identifiers, keeping
// acronym runs together: "parseHTTPRequest" -> ["parse", "HTTP", "Request"].
func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// Vector is a sparse term-frequency vector: parallel Indices/Values slices
// sorted ascending by index, suitable for Qdrant's sparse vector field.
type Vector struct {
	Indices []uint32
	Values  []float32
}

// BuildVector tokenizes text and returns its sparse term-frequency vector.
// Term identity is collapsed to a 32-bit index via xxhash, avoiding the need
// to keep a growing vocabulary table around; collisions are an accepted,
// vanishingly rare tradeoff since Qdrant's IDF modifier only needs
// approximate term identity, not an exact dictionary.
func BuildVector(text string) Vector {
	counts := make(map[uint32]float32)
	for _, tok := range Tokenize(text) {
		idx := hashTerm(tok)
		counts[idx]++
	}
	return vectorFromCounts(counts)
}

// BuildQueryVector is BuildVector's query-side counterpart; it exists
// separately because a query term carries weight 1 per occurrence just
// like a document term, but callers reach for the two entry points
// through distinct call sites (indexer vs. searcher) and the distinction
// is worth keeping visible in the import graph.
func BuildQueryVector(query string) Vector {
	return BuildVector(query)
}

func hashTerm(term string) uint32 {
	return uint32(xxhash.Sum64String(term))
}

func vectorFromCounts(counts map[uint32]float32) Vector {
	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = counts[idx]
	}

	return Vector{Indices: indices, Values: values}
}
