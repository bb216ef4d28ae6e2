package ralph

import (
	"context"
	"sync"
	"testing"

	"github.com/agentctl/runtime/internal/agent"
)

// queuedTextProvider replays one plain-text completion per call, cycling
// through a fixed queue.
type queuedTextProvider struct {
	mu    sync.Mutex
	queue []string
	calls int
}

func (p *queuedTextProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	if idx >= len(p.queue) {
		idx = len(p.queue) - 1
	}
	text := p.queue[idx]
	p.calls++

	ch := make(chan *agent.CompletionChunk, 2)
	ch <- &agent.CompletionChunk{Text: text}
	ch <- &agent.CompletionChunk{Done: true, InputTokens: 2, OutputTokens: 2}
	close(ch)
	return ch, nil
}

func (p *queuedTextProvider) Name() string          { return "queued-text" }
func (p *queuedTextProvider) Models() []agent.Model { return nil }
func (p *queuedTextProvider) SupportsTools() bool   { return true }

func TestLoop_RunLoop_StopsOnPromiseTag(t *testing.T) {
	provider := &queuedTextProvider{queue: []string{
		"still working",
		"almost there",
		"<promise>TASK COMPLETE</promise>",
	}}

	cfg := DefaultConfig()
	cfg.MaxIterations = 100
	cfg.IdleThreshold = 100
	l := New(cfg, t.TempDir(), nil, nil)

	newAgent := func(contextPrefix string) *agent.Agent {
		return agent.NewAgent(provider, agent.AgentConfig{
			Name:         "ralph",
			SystemPrompt: "you iterate until done",
			MaxSteps:     5,
		})
	}

	result, err := l.RunLoop(context.Background(), "finish the task", newAgent)
	if err != nil {
		t.Fatalf("RunLoop() error = %v", err)
	}
	if !result.Completion.Completed || result.Completion.Reason != ConditionPromiseTag {
		t.Fatalf("RunLoop() completion = %+v, want promise tag", result.Completion)
	}
	if result.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", result.Iterations)
	}
}

func TestLoop_RunLoop_StopsOnMaxIterations(t *testing.T) {
	provider := &queuedTextProvider{queue: []string{"working", "working", "working"}}

	cfg := DefaultConfig()
	cfg.MaxIterations = 2
	cfg.IdleThreshold = 100
	l := New(cfg, t.TempDir(), nil, nil)

	newAgent := func(contextPrefix string) *agent.Agent {
		return agent.NewAgent(provider, agent.AgentConfig{SystemPrompt: "iterate", MaxSteps: 5})
	}

	result, err := l.RunLoop(context.Background(), "goal", newAgent)
	if err != nil {
		t.Fatalf("RunLoop() error = %v", err)
	}
	if result.Completion.Reason != ConditionMaxIterations {
		t.Fatalf("Completion = %+v, want max iterations", result.Completion)
	}
}

func TestLoop_StartIteration_IncrementsAndClearsFiles(t *testing.T) {
	l := New(DefaultConfig(), t.TempDir(), nil, nil)
	_ = l.WorkingMemory.RecordFileModified("a.go")

	it, err := l.StartIteration()
	if err != nil {
		t.Fatalf("StartIteration() error = %v", err)
	}
	if it != 1 {
		t.Errorf("StartIteration() = %d, want 1", it)
	}
	if len(l.WorkingMemory.FilesModified()) != 0 {
		t.Error("expected files_modified to be cleared at the start of a new iteration")
	}
}

func TestLoop_StartIteration_ReloadsAfterFlaggedExternalEdit(t *testing.T) {
	dir := t.TempDir()
	l := New(DefaultConfig(), dir, nil, nil)

	if _, err := l.StartIteration(); err != nil {
		t.Fatalf("StartIteration() error = %v", err)
	}

	// Simulate a concurrent writer (e.g. a human editing memory.json by
	// hand) advancing the persisted iteration out from under l.
	other := NewWorkingMemory(dir, DefaultConfig().MemoryDir)
	if _, err := other.IncrementIteration(); err != nil {
		t.Fatalf("other.IncrementIteration() error = %v", err)
	}
	if _, err := other.IncrementIteration(); err != nil {
		t.Fatalf("other.IncrementIteration() error = %v", err)
	}

	l.pendingReload.Store(true)

	it, err := l.StartIteration()
	if err != nil {
		t.Fatalf("StartIteration() error = %v", err)
	}
	if it != 4 {
		t.Errorf("StartIteration() after flagged reload = %d, want 4 (reloaded the externally-written value of 3, then incremented)", it)
	}
	if l.pendingReload.Load() {
		t.Error("pendingReload should be cleared after StartIteration reloads")
	}
}

func TestLoop_GetStatus_ReflectsState(t *testing.T) {
	l := New(DefaultConfig(), t.TempDir(), nil, nil)
	_, _ = l.StartIteration()

	status := l.GetStatus()
	if status.State.Iteration != 1 {
		t.Errorf("status.State.Iteration = %d, want 1", status.State.Iteration)
	}
}
