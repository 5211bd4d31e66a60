// Package mcpserver builds a per-session MCP server instance for one product
// language variant: instructions, the search/fetch/get_code_guidelines
// tools, and the variant's resources under guidelines://{key}.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docbridge/mcp-docs/pkg/productconfig"
	"github.com/docbridge/mcp-docs/pkg/reqcontext"
	"github.com/docbridge/mcp-docs/pkg/search"
)

const workflowInstructions = `This server indexes product documentation for retrieval-augmented answers.

Workflow:
1. Call search with a focused natural-language query to find relevant chunks.
2. If a result looks promising but truncated, call fetch with its doc_id to read the full document.
3. Before writing code against this product, call get_code_guidelines to check for project-specific conventions.

Prefer narrow, specific queries over broad ones; issue several searches rather than one broad query.`

// Config assembles everything one product/language variant's MCP server
// needs: the resolved product configuration and a ready Searcher.
type Config struct {
	Resolved *productconfig.Resolved
	Searcher *search.Searcher
	Version  string
}

// Build constructs a fresh *mcp.Server for one session. Callers must invoke
// this once per session; the returned server is not meant to be shared
// across sessions.
func Build(cfg Config, log *slog.Logger) *mcp.Server {
	if log == nil {
		log = slog.Default()
	}

	instructions := workflowInstructions
	if cfg.Resolved.Product.Instructions != "" {
		instructions = instructions + "\n\n" + cfg.Resolved.Product.Instructions
	}

	srv := mcp.NewServer(
		&mcp.Implementation{
			Name:    "docbridge-" + cfg.Resolved.Product.ID,
			Version: cfg.Version,
		},
		&mcp.ServerOptions{
			Instructions: instructions,
		},
	)

	b := &builder{cfg: cfg, log: log}
	b.registerTools(srv)
	b.registerResources(srv)

	srv.AddReceivingMiddleware(b.loggingMiddleware)

	return srv
}

type builder struct {
	cfg Config
	log *slog.Logger
}

// SearchInput is the search tool's input schema.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query, must be a non-empty string"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, 1-20, defaults to the product's configured default"`
}

// FetchInput is the fetch tool's input schema.
type FetchInput struct {
	DocID string `json:"doc_id" jsonschema:"the doc_id of a document returned by search"`
}

// GetCodeGuidelinesInput is the (empty) get_code_guidelines input schema.
type GetCodeGuidelinesInput struct{}

func (b *builder) registerTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search",
		Description: "Search the indexed documentation with hybrid lexical/semantic retrieval.",
	}, b.handleSearch)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "fetch",
		Description: "Fetch the full content of a document by doc_id, assembled from all of its chunks in order.",
	}, b.handleFetch)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_code_guidelines",
		Description: "Return this product's registered code guidelines and conventions, if any are configured.",
	}, b.handleGetCodeGuidelines)
}

func (b *builder) registerResources(srv *mcp.Server) {
	for key, res := range b.cfg.Resolved.Variant.Resources {
		res := res
		srv.AddResource(
			&mcp.Resource{
				Name:        res.Name,
				URI:         "guidelines://" + key,
				Description: res.Description,
				MIMEType:    res.MimeType,
			},
			func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
				return &mcp.ReadResourceResult{
					Contents: []*mcp.ResourceContents{
						{URI: "guidelines://" + key, MIMEType: res.MimeType, Text: res.Content},
					},
				}, nil
			},
		)
	}
}

func (b *builder) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, nil, fmt.Errorf("query must be a non-empty string")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = b.cfg.Resolved.Product.Search.DefaultLimit
	}
	if limit > 20 {
		limit = 20
	}

	resp, err := b.cfg.Searcher.Search(ctx, query, limit, true)
	if err != nil {
		return nil, nil, err
	}

	payload := map[string]any{
		"query":         resp.Query,
		"detected_lang": resp.DetectedLang,
		"fusion_mode":   resp.FusionMode,
		"rerank_used":   resp.RerankUsed,
		"results":       resp.Results,
		"next_step":     nextStepForSearch(len(resp.Results)),
	}
	return textResult(payload)
}

func nextStepForSearch(resultCount int) string {
	if resultCount == 0 {
		return "No results. Try a shorter or differently-worded query."
	}
	return "Call fetch with the doc_id of a promising result to read the full document."
}

func (b *builder) handleFetch(ctx context.Context, req *mcp.CallToolRequest, input FetchInput) (*mcp.CallToolResult, any, error) {
	docID := strings.TrimSpace(input.DocID)
	if docID == "" {
		return nil, nil, fmt.Errorf("doc_id must be a non-empty string")
	}

	chunks, err := b.cfg.Searcher.GetDocChunks(ctx, docID)
	if err != nil {
		return nil, nil, err
	}

	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}

	payload := map[string]any{
		"doc_id":       docID,
		"chunk_count":  len(chunks),
		"full_content": strings.Join(contents, "\n\n"),
		"next_step":    nextStepForFetch(len(chunks)),
	}
	return textResult(payload)
}

func nextStepForFetch(chunkCount int) string {
	if chunkCount == 0 {
		return "No chunks found for this doc_id. Verify it came from a recent search result."
	}
	return "Use this content to answer the question at hand, or search again for a different document."
}

func (b *builder) handleGetCodeGuidelines(ctx context.Context, req *mcp.CallToolRequest, input GetCodeGuidelinesInput) (*mcp.CallToolResult, any, error) {
	return textResult(guidelinesPayload(b.cfg.Resolved.Variant.Resources))
}

// guidelinesPayload shapes a product's resources into the get_code_guidelines
// response, or a placeholder message when none are configured.
func guidelinesPayload(resources map[string]productconfig.ResourceDescriptor) map[string]any {
	if len(resources) == 0 {
		return map[string]any{
			"guidelines": map[string]any{},
			"message":    "No code guidelines are configured for this product.",
		}
	}

	guidelines := make(map[string]any, len(resources))
	for key, res := range resources {
		guidelines[key] = map[string]string{
			"name":        res.Name,
			"description": res.Description,
			"content":     res.Content,
		}
	}
	return map[string]any{"guidelines": guidelines}
}

func textResult(payload map[string]any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// loggingMiddleware emits one structured log line per tool invocation,
// tagged type=access, with request id, session id, product id, client info,
// duration, result count, and on failure the error message.
func (b *builder) loggingMiddleware(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		if method != "tools/call" {
			return next(ctx, method, req)
		}

		start := time.Now()
		rc, _ := reqcontext.FromContext(ctx)

		result, err := next(ctx, method, req)

		fields := []any{
			"type", "access",
			"product", b.cfg.Resolved.Product.ID,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if rc != nil {
			fields = append(fields,
				"request_id", rc.RequestID,
				"session_id", rc.SessionID,
				"client_info", rc.ClientInfo,
				"client_ip", rc.ClientIP,
			)
		}

		if err != nil {
			fields = append(fields, "error", err.Error())
			b.log.Error("tool invocation failed", fields...)
			return result, err
		}

		fields = append(fields, "result_count", resultCount(result))
		b.log.Info("tool invocation completed", fields...)
		return result, nil
	}
}

// resultCount reports the number of content blocks in a tool call result, a
// rough but dependency-free proxy for "how much came back".
func resultCount(result mcp.Result) int {
	ctr, ok := result.(*mcp.CallToolResult)
	if !ok || ctr == nil {
		return 0
	}
	return len(ctr.Content)
}
