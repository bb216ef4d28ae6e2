package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/agentctl/runtime/pkg/models"
)

// scriptedProvider replays one CompletionChunk batch per Complete call,
// advancing through a fixed script. It implements LLMProvider.
type scriptedProvider struct {
	mu     sync.Mutex
	script [][]*CompletionChunk
	calls  int
}

func (p *scriptedProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls >= len(p.script) {
		return nil, fmt.Errorf("scriptedProvider: no more scripted turns (call %d)", p.calls)
	}
	turn := p.script[p.calls]
	p.calls++

	ch := make(chan *CompletionChunk, len(turn))
	for _, c := range turn {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) Name() string        { return "scripted" }
func (p *scriptedProvider) Models() []Model     { return nil }
func (p *scriptedProvider) SupportsTools() bool { return true }

func textTurn(text string, inputTokens, outputTokens int) []*CompletionChunk {
	return []*CompletionChunk{
		{Text: text},
		{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens},
	}
}

func toolCallTurn(id, name, input string, inputTokens, outputTokens int) []*CompletionChunk {
	return []*CompletionChunk{
		{ToolCall: &models.ToolCall{ID: id, Name: name, Input: json.RawMessage(input)}},
		{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens},
	}
}

// echoTool returns its "value" parameter verbatim.
type echoTool struct{ name string }

func (t echoTool) Name() string        { return t.name }
func (t echoTool) Description() string { return "echoes its input" }
func (t echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"value":{"type":"string"}}}`)
}
func (t echoTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	var args struct {
		Value string `json:"value"`
	}
	_ = json.Unmarshal(params, &args)
	return &ToolResult{Content: "echo: " + args.Value}, nil
}

type failingTool struct{ name string }

func (t failingTool) Name() string            { return t.name }
func (t failingTool) Description() string     { return "always fails" }
func (t failingTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (t failingTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Content: "boom", IsError: true}, nil
}

func newTestLoop(t *testing.T, provider LLMProvider, tools ...Tool) (*AgentLoop, *State) {
	t.Helper()
	registry := NewToolRegistry()
	for _, tool := range tools {
		registry.Register(tool)
	}
	executor := NewExecutor(registry, DefaultExecutorConfig())
	emitter := NewEventEmitter("test-run", nil)
	loop := NewAgentLoop(provider, "test-model", executor, nil, nil, emitter, nil, DefaultLoopConfig())
	state := NewState("thread-1", "you are a test agent", 5)
	return loop, state
}

func TestAgentLoop_Run_HappyPathNoTools(t *testing.T) {
	provider := &scriptedProvider{script: [][]*CompletionChunk{
		textTurn("all done", 10, 5),
	}}
	loop, state := newTestLoop(t, provider)

	result, err := loop.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result != "all done" {
		t.Errorf("Run() = %q, want %q", result, "all done")
	}
	if state.Status != StatusCompleted {
		t.Errorf("state.Status = %s, want %s", state.Status, StatusCompleted)
	}
	if state.TotalInputTokens != 10 || state.TotalOutputTokens != 5 {
		t.Errorf("token totals = (%d, %d), want (10, 5)", state.TotalInputTokens, state.TotalOutputTokens)
	}
}

func TestAgentLoop_Run_ExecutesToolThenCompletes(t *testing.T) {
	provider := &scriptedProvider{script: [][]*CompletionChunk{
		toolCallTurn("call-1", "echo", `{"value":"hi"}`, 5, 5),
		textTurn("the tool said: echo: hi", 5, 5),
	}}
	loop, state := newTestLoop(t, provider, echoTool{name: "echo"})

	result, err := loop.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result != "the tool said: echo: hi" {
		t.Errorf("Run() = %q", result)
	}

	var sawToolMessage bool
	for _, m := range state.Messages {
		if m.Role == models.RoleTool {
			sawToolMessage = true
			if len(m.ToolResults) != 1 || m.ToolResults[0].Content != "echo: hi" {
				t.Errorf("unexpected tool message: %+v", m)
			}
		}
	}
	if !sawToolMessage {
		t.Error("expected a tool-role message appended to history")
	}
}

func TestAgentLoop_Run_ToolFailureIsNonFatal(t *testing.T) {
	provider := &scriptedProvider{script: [][]*CompletionChunk{
		toolCallTurn("call-1", "fails", `{}`, 5, 5),
		textTurn("recovered", 5, 5),
	}}
	loop, state := newTestLoop(t, provider, failingTool{name: "fails"})

	result, err := loop.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result != "recovered" {
		t.Errorf("Run() = %q, want %q", result, "recovered")
	}

	var sawErrorContent bool
	for _, m := range state.Messages {
		if m.Role == models.RoleTool && m.Content == "Error: boom" {
			sawErrorContent = true
		}
	}
	if !sawErrorContent {
		t.Error("expected the failing tool's result to be recorded as \"Error: boom\"")
	}
}

func TestAgentLoop_Run_UnknownToolSynthesizesFailure(t *testing.T) {
	provider := &scriptedProvider{script: [][]*CompletionChunk{
		toolCallTurn("call-1", "does_not_exist", `{}`, 5, 5),
		textTurn("moved on", 5, 5),
	}}
	loop, state := newTestLoop(t, provider)

	result, err := loop.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result != "moved on" {
		t.Errorf("Run() = %q", result)
	}
	var sawUnknown bool
	for _, m := range state.Messages {
		if m.Role == models.RoleTool && m.Content == "Error: Unknown tool: does_not_exist" {
			sawUnknown = true
		}
	}
	if !sawUnknown {
		t.Error("expected synthesized unknown-tool failure in history")
	}
}

func TestAgentLoop_Run_MaxStepsReached(t *testing.T) {
	// Every scripted turn requests the same tool again, so the loop never
	// naturally completes and must hit the step ceiling.
	script := make([][]*CompletionChunk, 0, 10)
	for i := 0; i < 10; i++ {
		script = append(script, toolCallTurn(fmt.Sprintf("call-%d", i), "echo", `{"value":"x"}`, 1, 1))
	}
	provider := &scriptedProvider{script: script}
	loop, state := newTestLoop(t, provider, echoTool{name: "echo"})
	state.MaxSteps = 2

	_, err := loop.Run(context.Background(), state)
	if err == nil {
		t.Fatal("expected an error once max steps is exceeded")
	}
	if state.Status != StatusError {
		t.Errorf("state.Status = %s, want %s", state.Status, StatusError)
	}
	if state.ErrorMessage != "max_steps_reached" {
		t.Errorf("state.ErrorMessage = %q, want %q", state.ErrorMessage, "max_steps_reached")
	}
}

func TestAgentLoop_Run_PausesOnGetUserInput(t *testing.T) {
	provider := &scriptedProvider{script: [][]*CompletionChunk{
		toolCallTurn("call-1", DefaultGetUserInputTool, `{"fields":[{"field_name":"email","field_type":"string"}]}`, 5, 5),
	}}
	loop, state := newTestLoop(t, provider)

	result, err := loop.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result != WaitingForInputSentinel {
		t.Errorf("Run() = %q, want sentinel", result)
	}
	if state.Status != StatusWaitingInput {
		t.Fatalf("state.Status = %s, want %s", state.Status, StatusWaitingInput)
	}
	if state.PausedToolCallID != "call-1" {
		t.Errorf("PausedToolCallID = %q, want call-1", state.PausedToolCallID)
	}
}

func TestAgentLoop_ProvideUserInputThenResume(t *testing.T) {
	provider := &scriptedProvider{script: [][]*CompletionChunk{
		toolCallTurn("call-1", DefaultGetUserInputTool, `{"fields":[{"field_name":"email","field_type":"string"}]}`, 5, 5),
		textTurn("thanks for your email", 5, 5),
	}}
	loop, state := newTestLoop(t, provider)

	if _, err := loop.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Status != StatusWaitingInput {
		t.Fatalf("precondition: want waiting_input, got %s", state.Status)
	}

	if err := loop.ProvideUserInput(state, map[string]string{"email": "a@b.com"}); err != nil {
		t.Fatalf("ProvideUserInput() error = %v", err)
	}
	if state.Status != StatusRunning {
		t.Fatalf("after ProvideUserInput, status = %s, want %s", state.Status, StatusRunning)
	}

	result, err := loop.Resume(context.Background(), state)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if result != "thanks for your email" {
		t.Errorf("Resume() = %q", result)
	}
	if state.Status != StatusCompleted {
		t.Errorf("state.Status = %s, want %s", state.Status, StatusCompleted)
	}
}

func TestAgentLoop_Run_LLMFailureIsTerminal(t *testing.T) {
	loop, state := newTestLoop(t, &erroringProvider{})
	_, err := loop.Run(context.Background(), state)
	if err == nil {
		t.Fatal("expected an error")
	}
	if state.Status != StatusError {
		t.Errorf("state.Status = %s, want %s", state.Status, StatusError)
	}
}

type erroringProvider struct{}

func (erroringProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	return nil, fmt.Errorf("connection refused")
}
func (erroringProvider) Name() string        { return "erroring" }
func (erroringProvider) Models() []Model     { return nil }
func (erroringProvider) SupportsTools() bool { return true }

func TestAgentLoop_Run_RerunsAfterCompletion(t *testing.T) {
	provider := &scriptedProvider{script: [][]*CompletionChunk{
		textTurn("first run done", 5, 5),
		textTurn("second run done", 5, 5),
	}}
	loop, state := newTestLoop(t, provider)

	if _, err := loop.Run(context.Background(), state); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	firstLen := len(state.Messages)

	result, err := loop.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if result != "second run done" {
		t.Errorf("second Run() = %q", result)
	}
	if len(state.Messages) <= firstLen {
		t.Error("expected messages to be preserved and appended to across reruns")
	}
}
