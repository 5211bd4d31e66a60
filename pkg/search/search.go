// Package search dispatches a query to the hybrid (RRF) or dense-only vector
// store path depending on detected query language versus the collection's
// document language, optionally reranks, and shapes results for the MCP
// tool layer.
package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/docbridge/mcp-docs/pkg/bm25"
	"github.com/docbridge/mcp-docs/pkg/docerrors"
	"github.com/docbridge/mcp-docs/pkg/embedder"
	"github.com/docbridge/mcp-docs/pkg/productconfig"
	"github.com/docbridge/mcp-docs/pkg/vectorstore"
)

const contentPreviewLen = 200

// Reranker re-scores candidates against query, returning the original-index
// ordering restricted to topK. Matches embedder.Client.Rerank's signature.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]embedder.RerankResult, error)
}

// Result is one shaped search hit.
type Result struct {
	Rank           int            `json:"rank"`
	DocID          string         `json:"doc_id"`
	ChunkID        string         `json:"chunk_id"`
	Score          float32        `json:"score"`
	Content        string         `json:"content"`
	ContentPreview string         `json:"content_preview"`
	Metadata       map[string]any `json:"metadata"`
}

// Response is the full search outcome returned to the tool layer.
type Response struct {
	Query        string `json:"query"`
	DetectedLang string `json:"detected_lang"`
	FusionMode   string `json:"fusion_mode"`
	// RerankUsed reports whether reranking was attempted, not whether it
	// succeeded: a reranker failure is absorbed (original fusion order kept,
	// warning logged) rather than falling back to RerankUsed=false.
	RerankUsed bool     `json:"rerank_used"`
	Results    []Result `json:"results"`
}

// Searcher runs one product/language collection's queries.
type Searcher struct {
	embedder    embedder.Embedder
	store       *vectorstore.Store
	reranker    Reranker
	collection  string
	docLanguage string
	defaultLang string
	params      productconfig.SearchParams
	log         *slog.Logger
}

// New constructs a Searcher for one collection. reranker may be nil, in
// which case rerank is never attempted regardless of useRerank.
func New(emb embedder.Embedder, store *vectorstore.Store, reranker Reranker, collection, docLanguage string, params productconfig.SearchParams, log *slog.Logger) *Searcher {
	if log == nil {
		log = slog.Default()
	}
	return &Searcher{
		embedder:    emb,
		store:       store,
		reranker:    reranker,
		collection:  collection,
		docLanguage: docLanguage,
		defaultLang: DefaultLanguage,
		params:      params,
		log:         log,
	}
}

// Search embeds query, picks fusion mode by detected-vs-collection language,
// optionally reranks, and truncates to limit (0 means the product's
// rerank_top_k default).
func (s *Searcher) Search(ctx context.Context, query string, limit int, useRerank bool) (Response, error) {
	if limit <= 0 {
		limit = s.params.RerankTopK
	}

	detected := detectLanguage(query, s.defaultLang)

	dense, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return Response{}, docerrors.NewSearchError("searcher", "embed", "failed to embed query", query, err)
	}

	fusionMode := "rrf"
	var hits []vectorstore.SearchResult
	if detected == s.docLanguage {
		sparse := bm25.BuildQueryVector(query)
		hits, err = s.store.QueryHybrid(ctx, s.collection, dense, sparse.Indices, sparse.Values, uint64(s.params.PrefetchLimit), uint64(s.params.PrefetchLimit), nil)
	} else {
		fusionMode = "dense_only"
		hits, err = s.store.QueryDense(ctx, s.collection, dense, uint64(s.params.PrefetchLimit), float32(s.params.DenseScoreThreshold), nil)
	}
	if err != nil {
		return Response{}, docerrors.NewSearchError("searcher", fusionModeOp(fusionMode), "vector store query failed", query, err)
	}

	results := shapeResults(hits)

	rerankUsed := shouldRerank(useRerank, s.reranker, len(results))
	if rerankUsed {
		results = s.rerank(ctx, query, results)
	}

	if limit < len(results) {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	return Response{
		Query:        query,
		DetectedLang: detected,
		FusionMode:   fusionMode,
		RerankUsed:   rerankUsed,
		Results:      results,
	}, nil
}

// shouldRerank reports whether the rerank stage should run: explicitly
// requested, a reranker is configured, and there's something to rerank.
func shouldRerank(useRerank bool, reranker Reranker, resultCount int) bool {
	return useRerank && reranker != nil && resultCount > 0
}

func fusionModeOp(mode string) string {
	if mode == "rrf" {
		return "query_hybrid"
	}
	return "query_dense"
}

// rerank passes candidate content to the configured reranker and reorders
// results accordingly. Rerank failures are logged and absorbed: the
// original fusion order is kept rather than failing the search.
func (s *Searcher) rerank(ctx context.Context, query string, results []Result) []Result {
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Content
	}

	topK := s.params.RerankTopK
	if topK <= 0 || topK > len(results) {
		topK = len(results)
	}

	reranked, err := s.reranker.Rerank(ctx, query, docs, topK)
	if err != nil {
		s.log.Warn("reranking failed, continuing with original order", "error", err)
		return results
	}

	out := make([]Result, 0, len(reranked))
	for _, rr := range reranked {
		if rr.Index < 0 || rr.Index >= len(results) {
			continue
		}
		r := results[rr.Index]
		r.Score = float32(rr.RelevanceScore)
		out = append(out, r)
	}
	return out
}

// GetDocChunks returns all chunks belonging to docID, ordered by chunk_index,
// capped at 100 chunks per document.
func (s *Searcher) GetDocChunks(ctx context.Context, docID string) ([]Result, error) {
	const hardCap = 100
	hits, err := s.store.Scroll(ctx, s.collection, vectorstore.MatchFilter("doc_id", docID), hardCap)
	if err != nil {
		return nil, docerrors.NewSearchError("searcher", "get_doc_chunks", "scroll failed", docID, err)
	}

	results := shapeResults(hits)
	sort.Slice(results, func(i, j int) bool {
		return chunkIndexOf(results[i]) < chunkIndexOf(results[j])
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

func chunkIndexOf(r Result) int64 {
	v, _ := r.Metadata["chunk_index"].(int64)
	return v
}

func shapeResults(hits []vectorstore.SearchResult) []Result {
	results := make([]Result, len(hits))
	for i, h := range hits {
		content, _ := h.Payload["content"].(string)
		docID, _ := h.Payload["doc_id"].(string)
		chunkID, _ := h.Payload["chunk_id"].(string)

		metadata := make(map[string]any, len(h.Payload))
		for k, v := range h.Payload {
			if k == "content" {
				continue
			}
			metadata[k] = v
		}

		results[i] = Result{
			DocID:          docID,
			ChunkID:        chunkID,
			Score:          h.Score,
			Content:        content,
			ContentPreview: preview(content),
			Metadata:       metadata,
		}
	}
	return results
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= contentPreviewLen {
		return content
	}
	return string(runes[:contentPreviewLen])
}
