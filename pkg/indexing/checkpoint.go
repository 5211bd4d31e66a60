// Package indexing resumably embeds and upserts a product's chunked
// documents into the vector store: a checkpoint file records the last
// chunk ID successfully processed so a crashed or interrupted run resumes
// rather than restarts.
package indexing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint is the on-disk indexing progress marker for one product.
type Checkpoint struct {
	LastProcessedChunkID string    `json:"last_processed_chunk_id"`
	Timestamp            time.Time `json:"timestamp"`
}

// CheckpointStore reads and writes checkpoints under checkpoints/checkpoint-{product}.json.
type CheckpointStore struct {
	dir string
}

// NewCheckpointStore constructs a CheckpointStore rooted at dir.
func NewCheckpointStore(dir string) *CheckpointStore {
	return &CheckpointStore{dir: dir}
}

func (c *CheckpointStore) path(product string) string {
	return filepath.Join(c.dir, fmt.Sprintf("checkpoint-%s.json", product))
}

// Load returns the product's checkpoint, or nil if none exists.
func (c *CheckpointStore) Load(product string) (*Checkpoint, error) {
	data, err := os.ReadFile(c.path(product))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return &cp, nil
}

// Save persists cp for product, creating the checkpoint directory if needed.
func (c *CheckpointStore) Save(product string, cp Checkpoint) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(c.path(product), data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Clear removes product's checkpoint file. Not an error if it is already gone.
func (c *CheckpointStore) Clear(product string) error {
	if err := os.Remove(c.path(product)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}
