package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/agentctl/runtime/pkg/models"
)

// WaitingForInputSentinel is returned by Run/Resume when a run pauses on a
// get_user_input tool call, rather than an assistant's final text.
const WaitingForInputSentinel = "Waiting for user input"

// DefaultGetUserInputTool is the reserved tool name the loop treats
// specially: invoking it suspends the run instead of executing a tool.
const DefaultGetUserInputTool = "get_user_input"

// DefaultMaxCheckpointsPerThread bounds checkpoint retention absent an
// explicit LoopConfig override.
const DefaultMaxCheckpointsPerThread = 10

// CheckpointStore persists and retrieves AgentState snapshots keyed by
// thread, so a run can resume after a crash or an explicit pause.
// Implementations must be safe for concurrent Save/Load; writes to the
// same thread are expected to serialize internally (see SessionLockTable).
type CheckpointStore interface {
	Save(ctx context.Context, cp *models.Checkpoint) error
	Load(ctx context.Context, threadID, checkpointID string) (*models.Checkpoint, error)
	LoadLatest(ctx context.Context, threadID string) (*models.Checkpoint, error)
	// ListCheckpoints returns every checkpoint for threadID, sorted
	// descending by CreatedAt (newest first).
	ListCheckpoints(ctx context.Context, threadID string) ([]*models.Checkpoint, error)
	Delete(ctx context.Context, threadID, checkpointID string) error
	DeleteThread(ctx context.Context, threadID string) error
}

// LoopConfig tunes AgentLoop behavior independent of any one run's State.
type LoopConfig struct {
	// MaxCheckpointsPerThread bounds checkpoint retention. Default: 10.
	MaxCheckpointsPerThread int

	// SaveOnToolExecution checkpoints after every step that executed a
	// tool batch, in addition to the pause-on-user-input checkpoint.
	SaveOnToolExecution bool

	// CheckpointOnPause checkpoints when a run suspends on get_user_input.
	CheckpointOnPause bool

	// GetUserInputTool names the reserved tool whose invocation pauses the
	// run. Default: "get_user_input".
	GetUserInputTool string
}

// DefaultLoopConfig returns the baseline loop configuration.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxCheckpointsPerThread: DefaultMaxCheckpointsPerThread,
		CheckpointOnPause:       true,
		GetUserInputTool:        DefaultGetUserInputTool,
	}
}

// AgentLoop is the sequential state machine driving one agent run: compute
// tokens, call the LLM, execute any requested tools, append messages, and
// repeat until completion, a pause, or an error. It mutates exactly one
// State at a time and is not itself safe for concurrent use against the
// same State (see 5. CONCURRENCY & RESOURCE MODEL).
type AgentLoop struct {
	Provider LLMProvider
	Model    string

	Executor *Executor
	TokenMgr *TokenManager
	Hooks    *HookManager
	Events   *EventEmitter
	Stats    *StatsCollector

	Checkpoints CheckpointStore
	Guard       ToolResultGuard

	Config LoopConfig
}

// NewAgentLoop wires the loop's collaborators. hooks, checkpoints, and
// stats may be nil; the loop degrades gracefully (no hooks invoked, no
// checkpointing, no stats accumulation).
func NewAgentLoop(provider LLMProvider, model string, executor *Executor, tokenMgr *TokenManager, hooks *HookManager, events *EventEmitter, checkpoints CheckpointStore, config LoopConfig) *AgentLoop {
	if config.MaxCheckpointsPerThread <= 0 {
		config.MaxCheckpointsPerThread = DefaultMaxCheckpointsPerThread
	}
	if config.GetUserInputTool == "" {
		config.GetUserInputTool = DefaultGetUserInputTool
	}
	return &AgentLoop{
		Provider:    provider,
		Model:       model,
		Executor:    executor,
		TokenMgr:    tokenMgr,
		Hooks:       hooks,
		Events:      events,
		Checkpoints: checkpoints,
		Config:      config,
	}
}

// Run drives state to completion, a user-input pause, or an error,
// transitioning an idle or terminal state to Running first. The returned
// string is the assistant's final text, the WaitingForInputSentinel, or
// empty alongside a non-nil error.
func (l *AgentLoop) Run(ctx context.Context, state *State) (string, error) {
	if err := l.enterRun(state); err != nil {
		return "", err
	}
	return l.runSteps(ctx, state, nil)
}

// RunStream behaves like Run but emits a ResponseChunk per streamed delta,
// tool result, pause, or terminal event on the returned channel, which is
// closed once the run reaches a stopping point.
func (l *AgentLoop) RunStream(ctx context.Context, state *State) <-chan *ResponseChunk {
	out := make(chan *ResponseChunk, 16)
	if err := l.enterRun(state); err != nil {
		go func() {
			defer close(out)
			out <- &ResponseChunk{Error: err}
		}()
		return out
	}

	go func() {
		defer close(out)
		emit := func(c *ResponseChunk) {
			select {
			case out <- c:
			case <-ctx.Done():
			}
		}
		_, err := l.runSteps(ctx, state, emit)
		if err != nil {
			emit(&ResponseChunk{Error: err})
		}
	}()
	return out
}

// ProvideUserInput answers a paused get_user_input tool call: it appends
// the synthetic tool message the LLM is waiting on and transitions the
// state back to Running. Callers then call Resume to continue the loop.
func (l *AgentLoop) ProvideUserInput(state *State, values map[string]string) error {
	if state.Status != StatusWaitingInput {
		return fmt.Errorf("agent: ProvideUserInput called but state is %s, not waiting_input", state.Status)
	}

	type fieldAnswer struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	answers := make([]fieldAnswer, 0, len(names))
	for _, name := range names {
		answers = append(answers, fieldAnswer{Name: name, Value: values[name]})
	}
	payload, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("agent: encoding user input answers: %w", err)
	}

	msg := models.Message{
		Role:    models.RoleTool,
		Content: string(payload),
		ToolResults: []models.ToolResult{
			{ToolCallID: state.PausedToolCallID, Content: string(payload)},
		},
		Metadata:  map[string]any{"tool_name": l.Config.GetUserInputTool},
		CreatedAt: time.Now(),
	}
	if err := state.AppendMessage(msg); err != nil {
		return err
	}
	state.ClearPause()
	return state.Transition(StatusRunning)
}

// Resume continues a Running state at current_step+1, typically after
// ProvideUserInput, or after a fresh State was reconstructed from a
// checkpoint via StateFromCheckpoint.
func (l *AgentLoop) Resume(ctx context.Context, state *State) (string, error) {
	if state.Status != StatusRunning {
		return "", fmt.Errorf("agent: Resume called but state is %s, not running", state.Status)
	}
	return l.runSteps(ctx, state, nil)
}

// ResumeStream is the streaming counterpart of Resume.
func (l *AgentLoop) ResumeStream(ctx context.Context, state *State) <-chan *ResponseChunk {
	out := make(chan *ResponseChunk, 16)
	if state.Status != StatusRunning {
		go func() {
			defer close(out)
			out <- &ResponseChunk{Error: fmt.Errorf("agent: ResumeStream called but state is %s, not running", state.Status)}
		}()
		return out
	}
	go func() {
		defer close(out)
		emit := func(c *ResponseChunk) {
			select {
			case out <- c:
			case <-ctx.Done():
			}
		}
		_, err := l.runSteps(ctx, state, emit)
		if err != nil {
			emit(&ResponseChunk{Error: err})
		}
	}()
	return out
}

// enterRun applies the Idle/Completed/Error -> Running edge of the state
// machine; a state already Running (e.g. reconstructed from a checkpoint)
// passes through unchanged. WaitingInput is rejected: callers must use
// ProvideUserInput first.
func (l *AgentLoop) enterRun(state *State) error {
	switch state.Status {
	case StatusIdle:
		return state.Start()
	case StatusCompleted, StatusError:
		return state.Rerun()
	case StatusRunning:
		return nil
	case StatusWaitingInput:
		return fmt.Errorf("agent: Run called while waiting for user input; call ProvideUserInput then Resume")
	default:
		return fmt.Errorf("agent: unknown state status %q", state.Status)
	}
}

// runSteps drives state through the per-step protocol until it leaves
// Running, forwarding chunks to emit if non-nil.
func (l *AgentLoop) runSteps(ctx context.Context, state *State, emit func(*ResponseChunk)) (string, error) {
	if l.Hooks != nil {
		if err := l.Hooks.BeforeRun(ctx, &HookContext{State: state, Step: state.CurrentStep}); err != nil {
			state.Fail(err.Error())
			return "", err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		done, result, err := l.step(ctx, state, emit)
		if err != nil {
			if l.Hooks != nil {
				_ = l.Hooks.AfterRun(ctx, &HookContext{State: state, Step: state.CurrentStep}, "", false)
			}
			return "", err
		}
		if done {
			if l.Hooks != nil {
				_ = l.Hooks.AfterRun(ctx, &HookContext{State: state, Step: state.CurrentStep}, result, state.Status == StatusCompleted)
			}
			return result, nil
		}
	}
}

// step executes exactly one iteration of the per-step protocol (4.4).
// done is true once the run has left Running (completed, paused, or
// errored); result carries the caller-visible text in that case.
func (l *AgentLoop) step(ctx context.Context, state *State, emit func(*ResponseChunk)) (done bool, result string, err error) {
	state.CurrentStep++
	if state.AtStepLimit() {
		state.Fail("max_steps_reached")
		l.Events.RunError(ctx, fmt.Errorf("task couldn't be completed after %d steps", state.MaxSteps), false)
		return true, "", fmt.Errorf("Task couldn't be completed after %d steps.", state.MaxSteps)
	}

	// Step 1: compute tokens, compact via TokenManager if over budget.
	if l.TokenMgr != nil {
		before := len(state.Messages)
		state.Messages = l.TokenMgr.MaybeSummarize(ctx, state.Messages)
		if len(state.Messages) != before {
			l.Events.ContextPacked(ctx, &models.ContextEventPayload{
				Candidates:  before,
				Included:    len(state.Messages),
				Dropped:     before - len(state.Messages),
				SummaryUsed: true,
			})
		}
	}

	// Step 2: StepStart.
	l.Events.SetIter(state.CurrentStep)
	l.Events.IterStarted(ctx)
	if l.Hooks != nil {
		_ = l.Hooks.OnStep(ctx, &HookContext{State: state, Step: state.CurrentStep}, map[string]any{
			"step":         state.CurrentStep,
			"max_steps":    state.MaxSteps,
			"num_messages": len(state.Messages),
		})
	}

	// Step 3: call the LLM.
	req := l.buildRequest(state)
	chunks, callErr := l.Provider.Complete(ctx, req)
	if callErr != nil {
		state.Fail("llm_failure")
		l.Events.RunError(ctx, callErr, true)
		return true, "", fmt.Errorf("LLM call failed: %s", callErr.Error())
	}

	var content, thinking string
	var toolCalls []models.ToolCall
	var inputTokens, outputTokens int
	for chunk := range chunks {
		if chunk.Error != nil {
			state.Fail("llm_failure")
			l.Events.RunError(ctx, chunk.Error, true)
			return true, "", fmt.Errorf("LLM call failed: %s", chunk.Error.Error())
		}
		if chunk.Thinking != "" {
			thinking += chunk.Thinking
			if emit != nil {
				emit(&ResponseChunk{Thinking: chunk.Thinking, ThinkingStart: chunk.ThinkingStart, ThinkingEnd: chunk.ThinkingEnd})
			}
		}
		if chunk.Text != "" {
			content += chunk.Text
			l.Events.ModelDelta(ctx, chunk.Text)
			if emit != nil {
				emit(&ResponseChunk{Text: chunk.Text})
			}
		}
		if chunk.ToolCall != nil {
			toolCalls = append(toolCalls, *chunk.ToolCall)
		}
		if chunk.Done {
			inputTokens = chunk.InputTokens
			outputTokens = chunk.OutputTokens
		}
	}

	// Step 4: accumulate usage.
	state.RecordUsage(inputTokens, outputTokens)

	// Step 5: LLMResponse.
	providerName := ""
	if l.Provider != nil {
		providerName = l.Provider.Name()
	}
	l.Events.ModelCompleted(ctx, providerName, l.Model, inputTokens, outputTokens)

	// Step 6: append the assistant message.
	assistantMsg := models.Message{
		Role:      models.RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
		CreatedAt: time.Now(),
	}
	if thinking != "" {
		assistantMsg.Metadata = map[string]any{"thinking": thinking}
	}
	if err := state.AppendMessage(assistantMsg); err != nil {
		state.Fail(err.Error())
		return true, "", err
	}

	// Step 7: no tool calls -> completed.
	if len(toolCalls) == 0 {
		state.Complete()
		l.Events.RunFinished(ctx, l.runStats())
		return true, content, nil
	}

	// Step 8: get_user_input pauses the run before any tool executes.
	for _, tc := range toolCalls {
		if tc.Name == l.Config.GetUserInputTool {
			inputCtx, fields := l.parseUserInputRequest(tc.Input)
			if err := state.EnterWaitingForInput(tc.ID, tc.Name); err != nil {
				state.Fail(err.Error())
				return true, "", err
			}
			l.Events.UserInputRequired(ctx, &models.UserInputEventPayload{
				ToolCallID: tc.ID,
				Fields:     fields,
				Context:    inputCtx,
			})
			if l.Config.CheckpointOnPause {
				l.maybeCheckpoint(ctx, state)
			}
			return true, WaitingForInputSentinel, nil
		}
	}

	// Step 9: execute the regular tool-call batch.
	for _, tc := range toolCalls {
		l.Events.ToolStarted(ctx, tc.ID, tc.Name, tc.Input)
	}
	execResults := l.Executor.ExecuteAll(ctx, toolCalls)
	toolMessages := ResultsToMessages(execResults)
	toolMessages = guardToolResults(l.Guard, toolCalls, toolMessages, nil)

	for i, res := range toolMessages {
		tc := toolCalls[i]
		er := execResults[i]

		displayContent := res.Content
		if res.IsError {
			displayContent = "Error: " + res.Content
		}
		msg := models.Message{
			Role:        models.RoleTool,
			Content:     displayContent,
			ToolResults: []models.ToolResult{res},
			Metadata:    map[string]any{"tool_name": tc.Name},
			CreatedAt:   time.Now(),
		}
		if err := state.AppendMessage(msg); err != nil {
			state.Fail(err.Error())
			return true, "", err
		}

		l.Events.ToolFinished(ctx, tc.ID, tc.Name, !res.IsError, []byte(res.Content), er.Duration)
		if emit != nil {
			resCopy := res
			emit(&ResponseChunk{ToolResult: &resCopy})
		}
	}

	// Step 10: StepEnd, optional checkpoint.
	l.Events.IterFinished(ctx)
	if l.Config.SaveOnToolExecution {
		l.maybeCheckpoint(ctx, state)
	}

	return false, "", nil
}

func (l *AgentLoop) buildRequest(state *State) *CompletionRequest {
	sysMsg := state.SystemMessage()
	system := ""
	if sysMsg != nil {
		system = sysMsg.Content
	}

	messages := make([]CompletionMessage, 0, len(state.Messages)-1)
	for _, m := range state.Messages[1:] {
		messages = append(messages, CompletionMessage{
			Role:        string(m.Role),
			Content:     m.Content,
			ToolCalls:   m.ToolCalls,
			ToolResults: m.ToolResults,
			Attachments: m.Attachments,
		})
	}

	var tools []Tool
	if l.Executor != nil && l.Executor.registry != nil {
		tools = l.Executor.registry.AsLLMTools()
	}

	return &CompletionRequest{
		Model:    l.Model,
		System:   system,
		Messages: messages,
		Tools:    tools,
	}
}

// parseUserInputRequest decodes a get_user_input tool call's arguments into
// the field list and optional context string spec.md 4.4 step 8 describes.
// An undecodable payload degrades to an empty field list rather than
// failing the run.
func (l *AgentLoop) parseUserInputRequest(input json.RawMessage) (inputCtx string, fields []models.UserInputField) {
	var req struct {
		Fields  []models.UserInputField `json:"fields"`
		Context string                  `json:"context"`
	}
	if len(input) == 0 {
		return "", nil
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return "", nil
	}
	return req.Context, req.Fields
}

func (l *AgentLoop) runStats() *models.RunStats {
	if l.Stats == nil {
		return nil
	}
	return l.Stats.Stats()
}

// maybeCheckpoint saves a checkpoint and trims retention if a store is
// configured; failures are logged to the event stream but never abort the
// run (checkpoint I/O is a durability concern, not a correctness one, save
// for the thrown storage errors spec.md 7 calls out as propagated - those
// are surfaced via RunError here rather than panicking the step).
func (l *AgentLoop) maybeCheckpoint(ctx context.Context, state *State) {
	if l.Checkpoints == nil {
		return
	}
	cp := &models.Checkpoint{
		ID:                uuid.NewString(),
		ThreadID:          state.ThreadID,
		Messages:          state.Snapshot(),
		CurrentStep:       state.CurrentStep,
		MaxSteps:          state.MaxSteps,
		TotalInputTokens:  state.TotalInputTokens,
		TotalOutputTokens: state.TotalOutputTokens,
		CreatedAt:         time.Now(),
	}
	if err := l.Checkpoints.Save(ctx, cp); err != nil {
		l.Events.RunError(ctx, fmt.Errorf("checkpoint save failed: %w", err), true)
		return
	}
	state.LastCheckpointID = cp.ID
	l.trimCheckpoints(ctx, state.ThreadID)
}

// trimCheckpoints enforces MaxCheckpointsPerThread by deleting the oldest
// surplus once ListCheckpoints (newest first) exceeds the bound.
func (l *AgentLoop) trimCheckpoints(ctx context.Context, threadID string) {
	list, err := l.Checkpoints.ListCheckpoints(ctx, threadID)
	if err != nil || len(list) <= l.Config.MaxCheckpointsPerThread {
		return
	}
	for _, cp := range list[l.Config.MaxCheckpointsPerThread:] {
		_ = l.Checkpoints.Delete(ctx, threadID, cp.ID)
	}
}

// StateFromCheckpoint reconstructs a resumable State from a saved
// checkpoint: messages, usage, and step position are restored and the
// state is left Running, ready for Resume.
func StateFromCheckpoint(cp *models.Checkpoint) *State {
	s := &State{
		Status:            StatusRunning,
		CurrentStep:       cp.CurrentStep,
		MaxSteps:          cp.MaxSteps,
		TotalInputTokens:  cp.TotalInputTokens,
		TotalOutputTokens: cp.TotalOutputTokens,
		Messages:          append([]models.Message(nil), cp.Messages...),
		ThreadID:          cp.ThreadID,
		LastCheckpointID:  cp.ID,
	}
	return s
}
