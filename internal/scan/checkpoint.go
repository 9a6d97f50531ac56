package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpointer persists the last owner index whose snapshot was stored.
type Checkpointer interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, lastProcessed uint64) error
}

// Checkpoint is the on-disk checkpoint document. Key identifies the scan
// (network, dex and owner); a checkpoint written for another key is ignored.
type Checkpoint struct {
	Key                string `json:"key"`
	LastProcessedIndex uint64 `json:"last_processed_index"`
	UpdatedAt          string `json:"updated_at"`
}

// CheckpointStore persists checkpoints to disk.
type CheckpointStore struct {
	path    string
	key     string
	enabled bool
}

func NewCheckpointStore(path, key string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, key: key, enabled: enabled}
}

func (c *CheckpointStore) Load(context.Context) (uint64, bool, error) {
	if !c.enabled {
		return 0, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return 0, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	if cp.Key != c.key {
		return 0, false, nil
	}

	return cp.LastProcessedIndex, true, nil
}

func (c *CheckpointStore) Save(_ context.Context, lastProcessed uint64) error {
	if !c.enabled {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := Checkpoint{
		Key:                c.key,
		LastProcessedIndex: lastProcessed,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}

// StateStore is a database-backed checkpoint table (postgres and sqlite stores).
type StateStore interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, last uint64) error
}

// StateCheckpoint adapts a StateStore row to a Checkpointer.
type StateCheckpoint struct {
	store StateStore
	name  string
}

func NewStateCheckpoint(store StateStore, name string) *StateCheckpoint {
	return &StateCheckpoint{store: store, name: name}
}

func (s *StateCheckpoint) Load(ctx context.Context) (uint64, bool, error) {
	last, ok, err := s.store.LoadState(ctx, s.name)
	if err != nil {
		return 0, false, fmt.Errorf("load scan state %s: %w", s.name, err)
	}
	return last, ok, nil
}

func (s *StateCheckpoint) Save(ctx context.Context, lastProcessed uint64) error {
	if err := s.store.SaveState(ctx, s.name, lastProcessed); err != nil {
		return fmt.Errorf("save scan state %s: %w", s.name, err)
	}
	return nil
}

// Key names a scan for checkpointing.
func Key(network, dex, owner string) string {
	return fmt.Sprintf("scan:%s:%s:%s", network, dex, owner)
}
