package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentctl/runtime/pkg/models"
)

const defaultFileStoreDir = ".agentctl/checkpoints"

// FileStore persists checkpoints as one JSON file per checkpoint, laid
// out <dir>/<thread_id>/<checkpoint_id>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates (if needed) dir and returns a FileStore rooted
// there. An empty dir resolves to "~/.agentctl/checkpoints", and a
// leading "~" is expanded to the user's home directory.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "~/" + defaultFileStoreDir
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("checkpoint: resolve home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) threadDir(threadID string) string {
	return filepath.Join(s.dir, threadID)
}

func (s *FileStore) checkpointPath(threadID, checkpointID string) string {
	return filepath.Join(s.threadDir(threadID), checkpointID+".json")
}

func (s *FileStore) Save(ctx context.Context, cp *models.Checkpoint) error {
	dir := s.threadDir(cp.ThreadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: create thread directory: %w", err)
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	path := s.checkpointPath(cp.ThreadID, cp.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, threadID, checkpointID string) (*models.Checkpoint, error) {
	path := s.checkpointPath(threadID, checkpointID)
	return readCheckpointFile(path)
}

func (s *FileStore) LoadLatest(ctx context.Context, threadID string) (*models.Checkpoint, error) {
	list, err := s.ListCheckpoints(ctx, threadID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (s *FileStore) ListCheckpoints(ctx context.Context, threadID string) ([]*models.Checkpoint, error) {
	dir := s.threadDir(threadID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list thread directory: %w", err)
	}

	var list []*models.Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		cp, err := readCheckpointFile(filepath.Join(dir, entry.Name()))
		if err != nil || cp == nil {
			continue
		}
		list = append(list, cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *FileStore) Delete(ctx context.Context, threadID, checkpointID string) error {
	path := s.checkpointPath(threadID, checkpointID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) DeleteThread(ctx context.Context, threadID string) error {
	dir := s.threadDir(threadID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("checkpoint: delete thread directory: %w", err)
	}
	return nil
}

func readCheckpointFile(path string) (*models.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}
	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", path, err)
	}
	return &cp, nil
}
