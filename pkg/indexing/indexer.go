package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docbridge/mcp-docs/pkg/bm25"
	"github.com/docbridge/mcp-docs/pkg/chunking"
	"github.com/docbridge/mcp-docs/pkg/docerrors"
	"github.com/docbridge/mcp-docs/pkg/docmodel"
	"github.com/docbridge/mcp-docs/pkg/embedder"
	"github.com/docbridge/mcp-docs/pkg/loader"
	"github.com/docbridge/mcp-docs/pkg/vectorstore"
)

const defaultBatchSize = 128

// Config names the product being indexed and tunes batch size/force-reindex.
type Config struct {
	Product   string
	BatchSize int
	Force     bool
}

// Report summarizes one indexing run.
type Report struct {
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
	DurationMs int64
}

// Indexer embeds and upserts one product's loaded, chunked documents.
type Indexer struct {
	loader      *loader.Loader
	chunker     chunking.Chunker
	embedder    embedder.Embedder
	store       *vectorstore.Store
	checkpoints *CheckpointStore
	collection  string
	log         *slog.Logger
}

// New constructs an Indexer for one product's collection.
func New(ld *loader.Loader, chunker chunking.Chunker, emb embedder.Embedder, store *vectorstore.Store, checkpoints *CheckpointStore, collection string, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{
		loader:      ld,
		chunker:     chunker,
		embedder:    emb,
		store:       store,
		checkpoints: checkpoints,
		collection:  collection,
		log:         log,
	}
}

// Run loads, chunks, embeds, and upserts a product's entire corpus.
// Batches are processed strictly sequentially and a checkpoint is written
// after each successful batch, so a crash mid-run resumes from the last
// completed batch rather than restarting from scratch. A batch failure
// aborts the run and propagates the error; the checkpoint is left intact.
func (ix *Indexer) Run(ctx context.Context, cfg Config) (Report, error) {
	start := time.Now()
	var report Report

	exists, err := ix.store.CollectionExists(ctx, ix.collection)
	if err != nil {
		return report, fmt.Errorf("check collection: %w", err)
	}
	if cfg.Force && exists {
		if err := ix.store.DeleteCollection(ctx, ix.collection); err != nil {
			return report, fmt.Errorf("delete collection: %w", err)
		}
		exists = false
	}
	if !exists {
		if err := ix.store.CreateCollection(ctx, ix.collection, ix.embedder.Dimension()); err != nil {
			return report, fmt.Errorf("create collection: %w", err)
		}
	}

	docs, err := ix.loader.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load documents: %w", err)
	}

	var chunks []docmodel.Chunk
	for _, doc := range docs {
		chunks = append(chunks, ix.chunker.Chunk(doc)...)
	}
	report.Total = len(chunks)

	resumeFrom := 0
	cp, err := ix.checkpoints.Load(cfg.Product)
	if err != nil {
		return report, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp != nil {
		resumeFrom = resumeIndex(chunks, cp.LastProcessedChunkID)
		report.Skipped = resumeFrom
		ix.log.Info("resuming indexing run", "product", cfg.Product, "resume_from", resumeFrom, "total", report.Total)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	for batchStart := resumeFrom; batchStart < len(chunks); batchStart += batchSize {
		batchEnd := batchStart + batchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batch := chunks[batchStart:batchEnd]

		if err := ix.processBatch(ctx, batch); err != nil {
			report.Failed += len(batch)
			report.DurationMs = time.Since(start).Milliseconds()
			return report, docerrors.NewIngestionError("batch", "", batch[0].ID, "batch processing failed", true, err)
		}
		report.Succeeded += len(batch)

		if err := ix.checkpoints.Save(cfg.Product, Checkpoint{
			LastProcessedChunkID: batch[len(batch)-1].ID,
			Timestamp:            time.Now(),
		}); err != nil {
			report.DurationMs = time.Since(start).Milliseconds()
			return report, fmt.Errorf("save checkpoint: %w", err)
		}

		ix.log.Info("indexed batch", "product", cfg.Product, "succeeded", report.Succeeded, "total", report.Total)
	}

	if err := ix.checkpoints.Clear(cfg.Product); err != nil {
		report.DurationMs = time.Since(start).Milliseconds()
		return report, fmt.Errorf("clear checkpoint: %w", err)
	}

	report.DurationMs = time.Since(start).Milliseconds()
	return report, nil
}

// processBatch embeds one batch's chunk contents, builds dense+sparse
// points, and upserts them. The vector store itself sub-batches the
// upsert at 32 points.
func (ix *Indexer) processBatch(ctx context.Context, batch []docmodel.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}

	points := make([]vectorstore.Point, len(batch))
	for i, c := range batch {
		sparse := bm25.BuildVector(c.Content)
		points[i] = vectorstore.Point{
			ID:            docmodel.PointID(c.ID),
			Dense:         vectors[i],
			SparseIndices: sparse.Indices,
			SparseValues:  sparse.Values,
			Payload:       chunkPayload(c),
		}
	}

	return ix.store.Upsert(ctx, ix.collection, points)
}

// resumeIndex returns the index of the first chunk after lastID in chunks,
// or 0 if lastID is not found (a stale or mismatched checkpoint restarts
// from the beginning rather than silently skipping everything).
func resumeIndex(chunks []docmodel.Chunk, lastID string) int {
	for i, c := range chunks {
		if c.ID == lastID {
			return i + 1
		}
	}
	return 0
}

func chunkPayload(c docmodel.Chunk) map[string]any {
	return map[string]any{
		"doc_id":         c.DocumentID,
		"chunk_id":       c.ID,
		"chunk_index":    c.ChunkIndex,
		"total_chunks":   c.TotalChunks,
		"product":        c.Product,
		"language":       c.Language,
		"category":       c.Category,
		"section_path":   c.SectionPath,
		"doc_toc":        c.DocTOC,
		"title":          c.Title,
		"relative_path":  c.RelativePath,
		"content":        c.Content,
		"has_code_block": c.HasCodeBlock,
	}
}
