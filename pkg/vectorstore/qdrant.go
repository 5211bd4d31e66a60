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

// Package vectorstore wraps the Qdrant client with the collection shape and
// query patterns this service needs: a named dense vector alongside a named
// BM25 sparse vector, server-side hybrid retrieval via Qdrant's prefetch +
// fusion query, and scroll-by-filter for chunk lookups.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "bm25"

	// upsertSubBatchSize keeps individual upsert calls small: each point's
	// payload carries the full chunk text and is large.
	upsertSubBatchSize = 32

	// indexingThreshold defers HNSW index construction until a collection
	// holds this many vectors, avoiding index churn during bulk ingestion.
	indexingThreshold = 10_000
)

// Store wraps a Qdrant client configured for this service's collection shape.
type Store struct {
	client *qdrant.Client
	host   string
	port   int
}

// Config configures a new Store.
type Config struct {
	Host   string
	Port   int // gRPC port, typically 6334
	APIKey string
	UseTLS bool
}

// New connects to Qdrant.
func New(cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client for %s:%d: %w\n"+
			"  - ensure Qdrant is running and reachable\n"+
			"  - verify QDRANT_URL and QDRANT_API_KEY",
			cfg.Host, cfg.Port, err)
	}
	return &Store{client: client, host: cfg.Host, port: cfg.Port}, nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// CollectionExists reports whether name already exists.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %q on %s:%d: %w", name, s.host, s.port, err)
	}
	return exists, nil
}

// CreateCollection creates a collection with a named dense cosine vector of
// denseDims dimensions and a named BM25 sparse vector (IDF modifier).
func (s *Store) CreateCollection(ctx context.Context, name string, denseDims int) error {
	onDisk := false
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     uint64(denseDims),
				Distance: qdrant.Distance_Cosine,
				HnswConfig: &qdrant.HnswConfigDiff{
					M:           qdrant.PtrOf(uint64(16)),
					EfConstruct: qdrant.PtrOf(uint64(100)),
				},
				OnDisk: &onDisk,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {
				Modifier: qdrant.Modifier_Idf.Enum(),
			},
		}),
		OptimizersConfig: &qdrant.OptimizersConfigDiff{
			IndexingThreshold: qdrant.PtrOf(uint64(indexingThreshold)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return nil
}

// DeleteCollection drops a collection if it exists; deleting a missing
// collection is not an error.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete collection %q: %w", name, err)
	}
	return nil
}

// Point is one record to upsert: a dense vector, a sparse (BM25) term
// vector, and an arbitrary JSON-ish payload.
type Point struct {
	ID            string
	Dense         []float32
	SparseIndices []uint32
	SparseValues  []float32
	Payload       map[string]any
}

// Upsert writes points in sub-batches of upsertSubBatchSize, waiting for
// server acknowledgement on each sub-batch.
func (s *Store) Upsert(ctx context.Context, collection string, points []Point) error {
	for start := 0; start < len(points); start += upsertSubBatchSize {
		end := start + upsertSubBatchSize
		if end > len(points) {
			end = len(points)
		}
		if err := s.upsertSubBatch(ctx, collection, points[start:end]); err != nil {
			return fmt.Errorf("upsert sub-batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (s *Store) upsertSubBatch(ctx context.Context, collection string, points []Point) error {
	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload := make(map[string]*qdrant.Value, len(p.Payload))
		for k, v := range p.Payload {
			val, err := qdrant.NewValue(v)
			if err != nil {
				return fmt.Errorf("convert payload field %q: %w", k, err)
			}
			payload[k] = val
		}

		structs[i] = &qdrant.PointStruct{
			Id: qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				denseVectorName:  qdrant.NewVector(p.Dense...),
				sparseVectorName: qdrant.NewVectorSparse(p.SparseIndices, p.SparseValues),
			}),
			Payload: payload,
		}
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         structs,
		Wait:           &wait,
	})
	return err
}

// SearchResult is one ranked match returned from a query.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// QueryHybrid runs a server-side prefetch of the dense and BM25-sparse
// vectors, fused with Qdrant's built-in Reciprocal Rank Fusion. prefetchLimit
// bounds each prefetch leg; limit bounds the final fused result count.
func (s *Store) QueryHybrid(ctx context.Context, collection string, dense []float32, sparseIndices []uint32, sparseValues []float32, prefetchLimit, limit uint64, filter *qdrant.Filter) ([]SearchResult, error) {
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Prefetch: []*qdrant.PrefetchQuery{
			{
				Query:  qdrant.NewQueryDense(dense),
				Using:  qdrant.PtrOf(denseVectorName),
				Limit:  qdrant.PtrOf(prefetchLimit),
				Filter: filter,
			},
			{
				Query:  qdrant.NewQuerySparse(sparseIndices, sparseValues),
				Using:  qdrant.PtrOf(sparseVectorName),
				Limit:  qdrant.PtrOf(prefetchLimit),
				Filter: filter,
			},
		},
		Query:       qdrant.NewQueryFusion(qdrant.Fusion_RRF),
		Limit:       qdrant.PtrOf(limit),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid query on %q: %w", collection, err)
	}
	return convertScoredPoints(resp), nil
}

// QueryDense runs a dense-only similarity query, used for the cross-language
// degradation path when the query language doesn't match the collection's
// document language. scoreThreshold, if nonzero, drops matches below it.
func (s *Store) QueryDense(ctx context.Context, collection string, dense []float32, limit uint64, scoreThreshold float32, filter *qdrant.Filter) ([]SearchResult, error) {
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(dense),
		Using:          qdrant.PtrOf(denseVectorName),
		Limit:          qdrant.PtrOf(limit),
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if scoreThreshold > 0 {
		req.ScoreThreshold = &scoreThreshold
	}

	resp, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("dense query on %q: %w", collection, err)
	}
	return convertScoredPoints(resp), nil
}

// Scroll returns up to limit points matching filter in one request. No
// ordering is requested; get_doc_chunks sorts the result by chunk_index.
func (s *Store) Scroll(ctx context.Context, collection string, filter *qdrant.Filter, limit uint32) ([]SearchResult, error) {
	resp, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         filter,
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("scroll on %q: %w", collection, err)
	}

	results := make([]SearchResult, len(resp))
	for i, p := range resp {
		results[i] = SearchResult{
			ID:      pointIDString(p.Id),
			Payload: convertPayload(p.Payload),
		}
	}
	return results, nil
}

// MatchFilter builds a filter matching payload key == value, used by callers
// that need an exact-match scroll or delete (e.g. get_doc_chunks by doc_id).
func MatchFilter(key, value string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: key,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: value},
						},
					},
				},
			},
		},
	}
}

// DeletePoints deletes points matching filter.
func (s *Store) DeletePoints(ctx context.Context, collection string, filter *qdrant.Filter) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("delete points on %q: %w", collection, err)
	}
	return nil
}

// UpsertWithBackoff retries a transient upsert failure up to 3 attempts with
// a 1-second linear backoff, distinct from the exponential backoff used by
// the embedder's HTTP client: Qdrant failures here are almost always brief
// connection hiccups, not rate limiting.
func (s *Store) UpsertWithBackoff(ctx context.Context, collection string, points []Point) error {
	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.Upsert(ctx, collection, points); err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(attempt) * time.Second):
				}
				continue
			}
			return fmt.Errorf("upsert failed after %d attempts: %w", maxAttempts, lastErr)
		}
		return nil
	}
	return lastErr
}

func convertScoredPoints(points []*qdrant.ScoredPoint) []SearchResult {
	results := make([]SearchResult, len(points))
	for i, p := range points {
		results[i] = SearchResult{
			ID:      pointIDString(p.Id),
			Score:   p.Score,
			Payload: convertPayload(p.Payload),
		}
	}
	return results
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}

func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = convertValue(v)
	}
	return out
}

func convertValue(v *qdrant.Value) any {
	switch kind := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		if kind.ListValue == nil {
			return nil
		}
		list := make([]any, len(kind.ListValue.Values))
		for i, item := range kind.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	default:
		return nil
	}
}
