package ralph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agentctl/runtime/internal/agent"
)

// RunResult is what one Loop.Run(ctx, agent) call returns: the final
// iteration's response, the completion verdict, and how many iterations
// it took.
type RunResult struct {
	Response   string
	Completion CompletionResult
	Iterations int
	TotalSteps int
}

// State tracks a Loop's runtime progress: iteration count, start time,
// completion status, and cumulative steps.
type State struct {
	Iteration        int
	StartedAt        time.Time
	Completed        bool
	CompletionReason CompletionCondition
	TotalSteps       int
}

// Loop drives an underlying Agent repeatedly against the same goal,
// carrying working memory and cached tool-result summaries between
// iterations until a CompletionDetector condition fires.
type Loop struct {
	config Config

	ToolCache      *ToolResultCache
	WorkingMemory  *WorkingMemory
	ContextManager *ContextManager
	detector       *CompletionDetector
	state          State

	logger  *slog.Logger
	watcher *fsnotify.Watcher

	// pendingReload is set by the watcher goroutine when an out-of-band
	// edit is detected, and consumed by the next StartIteration call.
	pendingReload atomic.Bool
}

// writeToolNames are tools whose "path" (or "file_path") argument marks
// a file as modified this iteration.
var writeToolNames = map[string]bool{"write_file": true, "edit_file": true}

// New builds a Loop rooted at workspaceDir, loading any existing
// working memory found there.
func New(config Config, workspaceDir string, summarize Summarizer, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	cache := NewToolResultCache(100)
	memory := NewWorkingMemory(workspaceDir, config.MemoryDir)
	return &Loop{
		config:         config,
		ToolCache:      cache,
		WorkingMemory:  memory,
		ContextManager: NewContextManager(config, cache, memory, summarize),
		detector:       NewCompletionDetector(config),
		state:          State{StartedAt: time.Now()},
		logger:         logger,
	}
}

// StartWatching begins watching the working-memory file for out-of-band
// edits; a detected write triggers WorkingMemory.Reload at the next
// call to StartIteration. The in-process Loop remains the sole writer
// during an iteration — the watcher only schedules a re-read.
func (l *Loop) StartWatching(ctx context.Context) error {
	if !l.config.WatchMemoryFile {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ralph: start watching memory file: %w", err)
	}
	dir := dirOf(l.WorkingMemory.Path())
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("ralph: watch %s: %w", dir, err)
	}
	l.watcher = watcher

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name == l.WorkingMemory.Path() && event.Op&fsnotify.Write != 0 {
					l.pendingReload.Store(true)
					l.logger.Debug("ralph: external edit of working memory detected, will reload at next iteration")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn("ralph: memory file watch error", "error", err)
			}
		}
	}()
	return nil
}

func (l *Loop) StopWatching() error {
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	l.watcher = nil
	return err
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// StartIteration advances the iteration counter and clears the set of
// files modified so far, returning the new iteration number. If an
// out-of-band edit was flagged by the memory-file watcher since the last
// call, the working memory is reloaded from disk first.
func (l *Loop) StartIteration() (int, error) {
	if l.pendingReload.CompareAndSwap(true, false) {
		l.WorkingMemory.Reload()
		l.logger.Debug("ralph: reloaded working memory after external edit")
	}

	it, err := l.WorkingMemory.IncrementIteration()
	if err != nil {
		return 0, err
	}
	if err := l.WorkingMemory.ClearIterationFiles(); err != nil {
		return 0, err
	}
	l.state.Iteration = it
	return it, nil
}

func (l *Loop) recordFileModified(path string) error {
	if err := l.WorkingMemory.RecordFileModified(path); err != nil {
		return err
	}
	return nil
}

// processExecutionLog walks one Agent.Run's execution log, recording
// any write/edit tool's path argument as modified and caching every
// tool result's summary. Tool calls and their results are paired by
// tool name in call order, matching how the underlying loop interleaves
// tool_call/tool_result events.
type pendingCall struct {
	callID string
	args   string
}

func (l *Loop) processExecutionLog(ctx context.Context, logs []agent.ExecutionLogEntry) error {
	pendingArgs := make(map[string][]pendingCall)

	for _, entry := range logs {
		switch entry.Type {
		case "tool_call":
			name, _ := entry.Data["tool"].(string)
			argsJSON, _ := entry.Data["arguments"].(string)
			callID, _ := entry.Data["call_id"].(string)
			pendingArgs[name] = append(pendingArgs[name], pendingCall{callID: callID, args: argsJSON})

		case "tool_result":
			name, _ := entry.Data["tool"].(string)
			content, _ := entry.Data["content"].(string)

			var call pendingCall
			if queue := pendingArgs[name]; len(queue) > 0 {
				call = queue[0]
				pendingArgs[name] = queue[1:]
			}
			callID := call.callID

			var args map[string]any
			_ = json.Unmarshal([]byte(call.args), &args)

			if writeToolNames[name] {
				path, _ := args["file_path"].(string)
				if path == "" {
					path, _ = args["path"].(string)
				}
				if path != "" {
					if err := l.recordFileModified(path); err != nil {
						return err
					}
				}
			}

			if callID == "" {
				callID = fmt.Sprintf("%s-%d", name, len(l.ToolCache.accessOrder))
			}
			if _, err := l.ContextManager.ProcessToolResult(ctx, callID, name, args, content, l.state.Iteration); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckCompletion evaluates the configured completion conditions
// against content (typically the iteration's final response) and the
// set of files touched this iteration.
func (l *Loop) CheckCompletion(content string) CompletionResult {
	result := l.detector.Check(content, l.state.Iteration, l.WorkingMemory.FilesModified())
	if result.Completed {
		l.state.Completed = true
		l.state.CompletionReason = result.Reason
	}
	return result
}

func (l *Loop) GetContextPrefix() string {
	return l.ContextManager.BuildContextPrefix()
}

func (l *Loop) SummarizeIteration(ctx context.Context, messagesContent string) (string, error) {
	return l.ContextManager.SummarizeIteration(ctx, l.state.Iteration, messagesContent)
}

func (l *Loop) Reset() {
	l.state = State{StartedAt: time.Now()}
	l.detector.Reset()
	l.ContextManager.Clear()
	_ = l.WorkingMemory.Clear()
}

// Status is get_status's return shape: a snapshot suitable for
// reporting to an operator or embedding in a tool result.
type Status struct {
	Enabled       bool
	State         State
	MemorySummary Summary
	Config        Config
}

func (l *Loop) GetStatus() Status {
	return Status{
		Enabled:       l.config.Enabled,
		State:         l.state,
		MemorySummary: l.WorkingMemory.GetSummary(),
		Config:        l.config,
	}
}

// RunLoop drives newAgent (a factory so each iteration gets a fresh
// Agent sharing the loop's accumulated context) through the full
// per-iteration procedure until completion or an error.
//
// Each iteration: advance the iteration counter, run the agent with the
// current context prefix prepended to goal, process its execution log
// (recording file modifications, caching tool results), then check for
// completion.
func (l *Loop) RunLoop(ctx context.Context, goal string, newAgent func(contextPrefix string) *agent.Agent) (*RunResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		iteration, err := l.StartIteration()
		if err != nil {
			return nil, fmt.Errorf("ralph: start iteration: %w", err)
		}

		prefix := l.GetContextPrefix()
		a := newAgent(prefix)
		message := goal
		if prefix != "" {
			message = prefix + "\n\n## Current Goal\n" + goal
		}
		a.AddUserMessage(message)

		response, logs, runErr := a.Run(ctx)
		if runErr != nil {
			_ = l.WorkingMemory.AddError(runErr.Error(), fmt.Sprintf("iteration %d", iteration))
			return nil, fmt.Errorf("ralph: iteration %d: %w", iteration, runErr)
		}

		if err := l.processExecutionLog(ctx, logs); err != nil {
			return nil, fmt.Errorf("ralph: iteration %d: process execution log: %w", iteration, err)
		}

		l.state.TotalSteps += a.State.CurrentStep

		completion := l.CheckCompletion(response)
		if completion.Completed {
			return &RunResult{
				Response:   response,
				Completion: completion,
				Iterations: iteration,
				TotalSteps: l.state.TotalSteps,
			}, nil
		}
	}
}
