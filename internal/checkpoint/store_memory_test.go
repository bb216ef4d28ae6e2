package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/agentctl/runtime/pkg/models"
)

func newCheckpoint(id, threadID string, createdAt time.Time) *models.Checkpoint {
	return &models.Checkpoint{
		ID:        id,
		ThreadID:  threadID,
		Messages:  []models.Message{{Role: models.RoleUser, Content: "hi"}},
		CreatedAt: createdAt,
	}
}

func TestMemoryStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	cp := newCheckpoint("cp-1", "thread-a", time.Now())

	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load(ctx, "thread-a", "cp-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || got.ID != "cp-1" {
		t.Fatalf("Load() = %+v, want checkpoint cp-1", got)
	}
}

func TestMemoryStore_LoadLatestPicksNewest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	older := newCheckpoint("cp-1", "thread-a", time.Now().Add(-time.Hour))
	newer := newCheckpoint("cp-2", "thread-a", time.Now())

	_ = s.Save(ctx, older)
	_ = s.Save(ctx, newer)

	latest, err := s.LoadLatest(ctx, "thread-a")
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if latest == nil || latest.ID != "cp-2" {
		t.Fatalf("LoadLatest() = %+v, want cp-2", latest)
	}
}

func TestMemoryStore_ListCheckpointsSortedDescending(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now()
	_ = s.Save(ctx, newCheckpoint("cp-1", "thread-a", base))
	_ = s.Save(ctx, newCheckpoint("cp-2", "thread-a", base.Add(time.Minute)))
	_ = s.Save(ctx, newCheckpoint("cp-3", "thread-a", base.Add(2*time.Minute)))

	list, err := s.ListCheckpoints(ctx, "thread-a")
	if err != nil {
		t.Fatalf("ListCheckpoints() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, want 3", len(list))
	}
	if list[0].ID != "cp-3" || list[1].ID != "cp-2" || list[2].ID != "cp-1" {
		t.Errorf("list order = [%s, %s, %s], want [cp-3, cp-2, cp-1]", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestMemoryStore_DeleteAndDeleteThread(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Save(ctx, newCheckpoint("cp-1", "thread-a", time.Now()))
	_ = s.Save(ctx, newCheckpoint("cp-2", "thread-a", time.Now()))

	if err := s.Delete(ctx, "thread-a", "cp-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := s.Load(ctx, "thread-a", "cp-1"); got != nil {
		t.Error("expected cp-1 to be gone after Delete")
	}

	if err := s.DeleteThread(ctx, "thread-a"); err != nil {
		t.Fatalf("DeleteThread() error = %v", err)
	}
	list, _ := s.ListCheckpoints(ctx, "thread-a")
	if len(list) != 0 {
		t.Errorf("expected no checkpoints after DeleteThread, got %d", len(list))
	}
}

func TestMemoryStore_LoadMissingReturnsNilNotError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.Load(ctx, "thread-a", "does-not-exist")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil error for a missing checkpoint", err)
	}
	if got != nil {
		t.Errorf("Load() = %+v, want nil", got)
	}
}
