package checkpoint

import (
	"context"
	"sort"
	"sync"

	"github.com/agentctl/runtime/pkg/models"
)

// MemoryStore keeps checkpoints in process memory, indexed by thread. It
// is intended for tests and short-lived single-process runs; nothing is
// written to disk.
type MemoryStore struct {
	mu          sync.Mutex
	checkpoints map[string]*models.Checkpoint
	byThread    map[string][]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checkpoints: make(map[string]*models.Checkpoint),
		byThread:    make(map[string][]string),
	}
}

func (s *MemoryStore) Save(ctx context.Context, cp *models.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cpCopy := *cp
	s.checkpoints[cp.ID] = &cpCopy
	s.byThread[cp.ThreadID] = append(s.byThread[cp.ThreadID], cp.ID)
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, threadID, checkpointID string) (*models.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.checkpoints[checkpointID]
	if !ok {
		return nil, nil
	}
	return cp, nil
}

func (s *MemoryStore) LoadLatest(ctx context.Context, threadID string) (*models.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byThread[threadID]
	if len(ids) == 0 {
		return nil, nil
	}
	var latest *models.Checkpoint
	for _, id := range ids {
		cp, ok := s.checkpoints[id]
		if !ok {
			continue
		}
		if latest == nil || cp.CreatedAt.After(latest.CreatedAt) {
			latest = cp
		}
	}
	return latest, nil
}

func (s *MemoryStore) ListCheckpoints(ctx context.Context, threadID string) ([]*models.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byThread[threadID]
	list := make([]*models.Checkpoint, 0, len(ids))
	for _, id := range ids {
		if cp, ok := s.checkpoints[id]; ok {
			list = append(list, cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *MemoryStore) Delete(ctx context.Context, threadID, checkpointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, checkpointID)
	ids := s.byThread[threadID]
	for i, id := range ids {
		if id == checkpointID {
			s.byThread[threadID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.byThread[threadID] {
		delete(s.checkpoints, id)
	}
	delete(s.byThread, threadID)
	return nil
}
