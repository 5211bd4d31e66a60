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

// Package embedder is a Voyage AI client for embeddings and reranking, with
// token-aware dynamic batching and sliding-window rate-limit integration.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
	"unicode"

	"github.com/docbridge/mcp-docs/pkg/docerrors"
	"github.com/docbridge/mcp-docs/pkg/httpclient"
	"github.com/docbridge/mcp-docs/pkg/ratelimit"
)

const (
	baseURL = "https://api.voyageai.com/v1"

	// maxBatchTokens is half the provider's 120k-token ceiling, leaving
	// slack for the estimate drifting from the provider's own tokenizer.
	maxBatchTokens = 60_000
	maxBatchItems  = 128
)

// modelDimensions lists the known output dimension for Voyage embedding
// models. Unlisted models default to 1024 (voyage-code-3's default).
var modelDimensions = map[string]int{
	"voyage-code-3":  1024,
	"voyage-3":       1024,
	"voyage-3-lite":  512,
	"voyage-3-large": 1024,
	"voyage-large-2": 1536,
	"voyage-code-2":  1536,
}

// Client embeds and reranks text through the Voyage AI API.
type Client struct {
	http          *httpclient.Client
	apiKey        string
	embedModel    string
	rerankModel   string
	dims          int
	embedLimiter  *ratelimit.Limiter
	rerankLimiter *ratelimit.Limiter
}

// New constructs a Client. rpmLimit/tpmLimit configure the sliding-window
// rate limiter shared by all embed calls (VOYAGE_RPM_LIMIT/VOYAGE_TPM_LIMIT).
func New(apiKey, embedModel, rerankModel string, rpmLimit, tpmLimit int64) *Client {
	dims, ok := modelDimensions[embedModel]
	if !ok {
		dims = 1024
	}
	return &Client{
		http: httpclient.New(
			httpclient.WithMaxRetries(2),
			httpclient.WithBaseDelay(1*time.Second),
			httpclient.WithMaxDelay(4*time.Second),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
		apiKey:        apiKey,
		embedModel:    embedModel,
		rerankModel:   rerankModel,
		dims:          dims,
		embedLimiter:  ratelimit.New(ratelimit.ScopeEmbedder, ratelimit.DefaultWindow, rpmLimit, tpmLimit),
		rerankLimiter: ratelimit.New(ratelimit.ScopeRerank, ratelimit.DefaultWindow, rpmLimit, 0),
	}
}

// Dimension returns the declared output dimension of the embedding model.
func (c *Client) Dimension() int {
	return c.dims
}

// Model returns the embedding model name in use.
func (c *Client) Model() string {
	return c.embedModel
}

// Embed embeds a single text. It is a thin wrapper over EmbedBatch.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Close is a no-op; the Client holds no resources that outlive the process.
func (c *Client) Close() error {
	return nil
}

// EstimateTokens approximates a token count for batching and rate-limit
// accounting: CJK characters count at 1.5 chars/token, everything else at
// 2.5 chars/token. This need not match the provider's own tokenizer.
func EstimateTokens(text string) int {
	var cjk, other float64
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	tokens := math.Ceil(cjk/1.5 + other/2.5)
	if tokens < 1 && len(text) > 0 {
		tokens = 1
	}
	return int(tokens)
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// planBatches groups texts so each batch stays under maxBatchTokens
// estimated tokens and maxBatchItems items. A single input that alone
// exceeds the token ceiling is sent in a batch by itself.
func planBatches(texts []string) [][]string {
	var batches [][]string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, current)
			current = nil
			currentTokens = 0
		}
	}

	for _, text := range texts {
		tokens := EstimateTokens(text)

		if tokens > maxBatchTokens {
			flush()
			batches = append(batches, []string{text})
			continue
		}

		if len(current) > 0 && (currentTokens+tokens > maxBatchTokens || len(current) >= maxBatchItems) {
			flush()
		}

		current = append(current, text)
		currentTokens += tokens
	}
	flush()

	return batches
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// EmbedBatch embeds all texts, internally chunked into dynamically-sized
// sub-batches, rate-limited against the shared embedder scope. Returned
// vectors are ordered to match the input order. A dimension mismatch on any
// returned vector is treated as fatal (propagates immediately, not retried).
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, 0, len(texts))
	for _, batch := range planBatches(texts) {
		vectors, err := c.embedOne(ctx, batch)
		if err != nil {
			return nil, err
		}
		result = append(result, vectors...)
	}
	return result, nil
}

func (c *Client) embedOne(ctx context.Context, texts []string) ([][]float32, error) {
	totalTokens := int64(0)
	for _, t := range texts {
		totalTokens += int64(EstimateTokens(t))
	}

	if err := c.embedLimiter.CheckAndRecord(totalTokens); err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(embedRequest{Input: texts, Model: c.embedModel})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyError("voyage-embed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, docerrors.NewAPIError("voyage-embed", resp.StatusCode, "failed to read response body", false, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, docerrors.NewAPIError("voyage-embed", resp.StatusCode, string(body), isRetryableStatus(resp.StatusCode), nil)
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, docerrors.NewAPIError("voyage-embed", resp.StatusCode, "failed to decode response", false, err)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			continue
		}
		if len(item.Embedding) != c.dims {
			return nil, fmt.Errorf("voyage embed: dimension mismatch: got %d, want %d", len(item.Embedding), c.dims)
		}
		vectors[item.Index] = item.Embedding
	}

	return vectors, nil
}

// RerankResult is one scored candidate returned by Rerank, in descending
// relevance order.
type RerankResult struct {
	Index          int
	RelevanceScore float64
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Data []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"data"`
}

// Rerank scores documents against query and returns up to topK results
// ordered by descending relevance. Rerank is best-effort: callers should
// fall back to the input order (with a logged warning) on error rather than
// failing the surrounding search.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	tokens := int64(EstimateTokens(query))
	for _, d := range documents {
		tokens += int64(EstimateTokens(d))
	}
	if err := c.rerankLimiter.CheckAndRecord(tokens); err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(rerankRequest{Query: query, Documents: documents, Model: c.rerankModel, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/rerank", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyError("voyage-rerank", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, docerrors.NewAPIError("voyage-rerank", resp.StatusCode, "failed to read response body", false, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, docerrors.NewAPIError("voyage-rerank", resp.StatusCode, string(body), isRetryableStatus(resp.StatusCode), nil)
	}

	var parsed rerankResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, docerrors.NewAPIError("voyage-rerank", resp.StatusCode, "failed to decode response", false, err)
	}

	results := make([]RerankResult, len(parsed.Data))
	for i, item := range parsed.Data {
		results[i] = RerankResult{Index: item.Index, RelevanceScore: item.RelevanceScore}
	}
	return results, nil
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func classifyError(provider string, err error) error {
	if re, ok := err.(*httpclient.RetryableError); ok {
		return docerrors.NewAPIError(provider, re.StatusCode, re.Message, true, re.Err)
	}
	return docerrors.NewAPIError(provider, 0, err.Error(), false, err)
}
