package agent

import (
	"fmt"

	"github.com/agentctl/runtime/pkg/models"
)

// Status is the lifecycle state of an agent run.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusRunning      Status = "running"
	StatusWaitingInput Status = "waiting_input"
	StatusCompleted    Status = "completed"
	StatusError        Status = "error"
)

// validTransitions enumerates the allowed Status -> Status edges. A loop
// that would step outside this table is a programming error, not a
// runtime condition, and State.Transition returns an error and leaves the
// status unchanged rather than silently accepting it.
var validTransitions = map[Status]map[Status]bool{
	StatusIdle: {
		StatusRunning: true,
	},
	StatusRunning: {
		StatusRunning:      true, // next step
		StatusWaitingInput: true,
		StatusCompleted:    true,
		StatusError:        true,
	},
	StatusWaitingInput: {
		StatusRunning: true, // ProvideUserInput + Resume
	},
	StatusCompleted: {
		StatusRunning: true, // Run called again on a finished state
	},
	StatusError: {
		StatusRunning: true, // Run called again after a failed state
	},
}

// State holds everything describing one agent run: its messages, step
// counters, token usage, and pause/error detail. It is owned exclusively
// by the loop driving it; nothing outside a running Run mutates it.
//
// Invariant: exactly one message has Role == models.RoleSystem, and it
// is Messages[0].
// Invariant: every models.RoleTool message's ToolCallID matches the ID
// of some preceding assistant message's ToolCalls entry.
type State struct {
	Status Status

	CurrentStep int
	MaxSteps    int

	TotalInputTokens  int
	TotalOutputTokens int

	Messages []models.Message

	PendingUserInput   map[string]string
	PausedToolCallID   string
	PausedToolCallName string

	ErrorMessage string

	ThreadID          string
	LastCheckpointID  string
}

// NewState constructs an idle State seeded with a system message.
// maxSteps must be a bounded positive integer; callers that pass <= 0
// get the conventional default of 25.
func NewState(threadID, systemPrompt string, maxSteps int) *State {
	if maxSteps <= 0 {
		maxSteps = 25
	}
	return &State{
		Status:   StatusIdle,
		MaxSteps: maxSteps,
		ThreadID: threadID,
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: systemPrompt},
		},
	}
}

// Transition moves the state to `to`, validating the edge is legal.
func (s *State) Transition(to Status) error {
	allowed, ok := validTransitions[s.Status]
	if !ok || !allowed[to] {
		return fmt.Errorf("agent: illegal state transition %s -> %s", s.Status, to)
	}
	s.Status = to
	return nil
}

// AppendMessage appends a message to the conversation, preserving the
// system-at-index-0 invariant (it refuses to append another system
// message).
func (s *State) AppendMessage(m models.Message) error {
	if m.Role == models.RoleSystem {
		return fmt.Errorf("agent: only Messages[0] may carry role=system")
	}
	s.Messages = append(s.Messages, m)
	return nil
}

// RecordUsage folds a step's reported token usage into the running,
// monotonically non-decreasing totals.
func (s *State) RecordUsage(inputTokens, outputTokens int) {
	if inputTokens > 0 {
		s.TotalInputTokens += inputTokens
	}
	if outputTokens > 0 {
		s.TotalOutputTokens += outputTokens
	}
}

// EnterWaitingForInput suspends the run on a get_user_input tool call.
func (s *State) EnterWaitingForInput(toolCallID, toolName string) error {
	if err := s.Transition(StatusWaitingInput); err != nil {
		return err
	}
	s.PausedToolCallID = toolCallID
	s.PausedToolCallName = toolName
	return nil
}

// ResolveUserInput records the caller-supplied answer and clears the
// pause, ready for Resume to continue the loop. It does not itself
// transition back to Running; the loop does that once it has re-entered
// the step protocol.
func (s *State) ResolveUserInput(fields map[string]string) {
	s.PendingUserInput = fields
}

// ClearPause drops the paused-tool-call bookkeeping once Resume has
// consumed it.
func (s *State) ClearPause() {
	s.PausedToolCallID = ""
	s.PausedToolCallName = ""
	s.PendingUserInput = nil
}

// Fail transitions to Error and records a human-readable cause.
func (s *State) Fail(reason string) {
	s.ErrorMessage = reason
	_ = s.Transition(StatusError)
}

// Complete transitions to Completed.
func (s *State) Complete() {
	_ = s.Transition(StatusCompleted)
}

// Start transitions an idle state to Running, beginning its first step.
func (s *State) Start() error {
	return s.Transition(StatusRunning)
}

// Rerun transitions a terminal (Completed or Error) state back to Running
// for a fresh call to Run. Accumulated messages are preserved; the step
// counter and any error/pause bookkeeping from the previous run are reset.
func (s *State) Rerun() error {
	if err := s.Transition(StatusRunning); err != nil {
		return err
	}
	s.CurrentStep = 0
	s.ErrorMessage = ""
	s.ClearPause()
	return nil
}

// AtStepLimit reports whether the run has exhausted its step budget. A run
// may execute exactly MaxSteps steps; it only fails once a step numbered
// beyond that would start.
func (s *State) AtStepLimit() bool {
	return s.CurrentStep > s.MaxSteps
}

// SystemMessage returns the invariant system message at index 0.
func (s *State) SystemMessage() *models.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[0]
}

// Snapshot returns a shallow copy of the messages slice suitable for
// embedding in a checkpoint, isolated from further mutation of s.Messages
// (appends to s.Messages after Snapshot will not affect the returned
// slice, since append may or may not reuse the backing array).
func (s *State) Snapshot() []models.Message {
	out := make([]models.Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}
