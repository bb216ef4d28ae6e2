package models

import "time"

// Checkpoint is a durable snapshot of an AgentState sufficient to resume a
// run: the full message history, accumulated token usage, and step
// position. Checkpoints are immutable once saved; resuming reconstructs a
// fresh in-memory state from one.
type Checkpoint struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`

	Messages []Message `json:"messages"`

	CurrentStep int `json:"current_step"`
	MaxSteps    int `json:"max_steps"`

	TotalInputTokens  int `json:"total_input_tokens"`
	TotalOutputTokens int `json:"total_output_tokens"`

	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
