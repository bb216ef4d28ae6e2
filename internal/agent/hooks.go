package agent

import (
	"context"
	"sort"
	"sync"
)

// HookContext carries the state and per-step data passed to a hook
// callback. Hooks observe and may enrich a run (memory injection,
// personalization, tracing) but do not drive the loop themselves.
type HookContext struct {
	State    *State
	Step     int
	Metadata map[string]any
}

// AgentHook is a priority-ordered extension point invoked at well-defined
// points of a run. Lower Priority runs first. All three methods are
// optional; embed NoopHook to satisfy the interface with no-ops and
// override only what's needed.
type AgentHook interface {
	Priority() int
	BeforeRun(ctx context.Context, hctx *HookContext) error
	OnStep(ctx context.Context, hctx *HookContext, stepData map[string]any) error
	AfterRun(ctx context.Context, hctx *HookContext, result string, success bool) error
}

// NoopHook implements AgentHook with no-op callbacks and Priority()==100;
// embed it in a concrete hook to override only the methods it needs.
type NoopHook struct{}

func (NoopHook) Priority() int { return 100 }
func (NoopHook) BeforeRun(ctx context.Context, hctx *HookContext) error { return nil }
func (NoopHook) OnStep(ctx context.Context, hctx *HookContext, stepData map[string]any) error {
	return nil
}
func (NoopHook) AfterRun(ctx context.Context, hctx *HookContext, result string, success bool) error {
	return nil
}

// HookManager holds a registry of hooks and invokes them synchronously,
// in ascending priority order, at each of a run's three extension points.
// A hook returning an error aborts the remaining hooks for that
// invocation; the caller decides whether that is fatal to the run.
type HookManager struct {
	mu    sync.RWMutex
	hooks []AgentHook
}

// NewHookManager creates an empty hook manager.
func NewHookManager() *HookManager {
	return &HookManager{}
}

// Register adds a hook and keeps the registry sorted by ascending priority.
func (m *HookManager) Register(h AgentHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
	sort.SliceStable(m.hooks, func(i, j int) bool {
		return m.hooks[i].Priority() < m.hooks[j].Priority()
	})
}

// ordered returns a snapshot of the registered hooks, already
// priority-sorted, safe to iterate without holding the manager's lock.
func (m *HookManager) ordered() []AgentHook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AgentHook, len(m.hooks))
	copy(out, m.hooks)
	return out
}

// BeforeRun invokes every hook's BeforeRun callback in priority order.
func (m *HookManager) BeforeRun(ctx context.Context, hctx *HookContext) error {
	for _, h := range m.ordered() {
		if err := h.BeforeRun(ctx, hctx); err != nil {
			return err
		}
	}
	return nil
}

// OnStep invokes every hook's OnStep callback in priority order.
func (m *HookManager) OnStep(ctx context.Context, hctx *HookContext, stepData map[string]any) error {
	for _, h := range m.ordered() {
		if err := h.OnStep(ctx, hctx, stepData); err != nil {
			return err
		}
	}
	return nil
}

// AfterRun invokes every hook's AfterRun callback in priority order.
func (m *HookManager) AfterRun(ctx context.Context, hctx *HookContext, result string, success bool) error {
	for _, h := range m.ordered() {
		if err := h.AfterRun(ctx, hctx, result, success); err != nil {
			return err
		}
	}
	return nil
}
