package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentctl/runtime/pkg/models"
)

// SkillProvider supplies the progressive-disclosure skills-metadata block
// (level 1: name/description only, full content loaded lazily elsewhere)
// injected into the assembled system prompt. See internal/skills.
type SkillProvider interface {
	SkillsMetadataPrompt() string
}

// PromptSection is a user-defined <tag>content</tag> block appended after
// the built-in sections and before the trailing free-form context
// paragraph.
type PromptSection struct {
	Tag     string
	Content string
}

// PromptConfig drives buildSystemPrompt's section assembly.
type PromptConfig struct {
	Name        string
	Description string
	Role        string

	Instructions []string
	Markdown     bool

	ToolInstructions []string
	Skills           SkillProvider

	ExpectedOutput string

	WorkspaceDir string

	AddDateTime bool
	Timezone    string

	AdditionalInfo []string
	CustomSections []PromptSection

	AdditionalContext string
}

const markdownOutputSection = "<output_format>\n" +
	"Use markdown formatting to improve readability:\n" +
	"- Use headers (##, ###) to organize sections\n" +
	"- Use bullet points and numbered lists\n" +
	"- Use code blocks for code snippets\n" +
	"- Use **bold** for emphasis\n" +
	"</output_format>"

// buildSystemPrompt assembles a system prompt from cfg in the fixed order:
// name heading, description, <your_role>, <instructions>, markdown
// guidance, <tool_usage_guidelines>, skills metadata, <expected_output>,
// <workspace_info>, <current_datetime>, <additional_information>,
// user-defined sections, then a trailing free-form paragraph. Sections
// with no content contribute nothing; the result is the non-empty
// sections joined by a blank line.
func buildSystemPrompt(cfg PromptConfig) string {
	var sections []string

	if cfg.Name != "" {
		sections = append(sections, "# "+cfg.Name)
	}
	if cfg.Description != "" {
		sections = append(sections, cfg.Description)
	}
	if cfg.Role != "" {
		sections = append(sections, fmt.Sprintf("<your_role>\n%s\n</your_role>", cfg.Role))
	}
	if len(cfg.Instructions) > 0 {
		sections = append(sections, buildInstructionsSection(cfg.Instructions))
	}
	if cfg.Markdown {
		sections = append(sections, markdownOutputSection)
	}
	if len(cfg.ToolInstructions) > 0 {
		sections = append(sections, buildTagListSection("tool_usage_guidelines", cfg.ToolInstructions, false))
	}
	if cfg.Skills != nil {
		if meta := strings.TrimSpace(cfg.Skills.SkillsMetadataPrompt()); meta != "" {
			sections = append(sections, meta)
		}
	}
	if cfg.ExpectedOutput != "" {
		sections = append(sections, fmt.Sprintf("<expected_output>\n%s\n</expected_output>", strings.TrimSpace(cfg.ExpectedOutput)))
	}
	if cfg.WorkspaceDir != "" {
		sections = append(sections, fmt.Sprintf(
			"<workspace_info>\nCurrent working directory: `%s`\nAll relative file paths are resolved relative to this directory.\n</workspace_info>",
			cfg.WorkspaceDir,
		))
	}
	if cfg.AddDateTime {
		sections = append(sections, buildDatetimeSection(cfg.Timezone))
	}
	if len(cfg.AdditionalInfo) > 0 {
		sections = append(sections, buildTagListSection("additional_information", cfg.AdditionalInfo, true))
	}
	for _, custom := range cfg.CustomSections {
		tag := strings.TrimSpace(custom.Tag)
		content := strings.TrimSpace(custom.Content)
		if tag == "" || content == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("<%s>\n%s\n</%s>", tag, content, tag))
	}
	if cfg.AdditionalContext != "" {
		sections = append(sections, cfg.AdditionalContext)
	}

	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

func buildInstructionsSection(instructions []string) string {
	var b strings.Builder
	b.WriteString("<instructions>")
	if len(instructions) == 1 {
		fmt.Fprintf(&b, "\n%s", instructions[0])
	} else {
		for _, inst := range instructions {
			fmt.Fprintf(&b, "\n- %s", inst)
		}
	}
	b.WriteString("\n</instructions>")
	return b.String()
}

// buildTagListSection renders items as either a bulleted or bare-line list
// wrapped in <tag>...</tag>; bullet controls whether each line is prefixed
// with "- ".
func buildTagListSection(tag string, items []string, bullet bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<%s>", tag)
	for _, item := range items {
		if bullet {
			fmt.Fprintf(&b, "\n- %s", item)
		} else {
			fmt.Fprintf(&b, "\n%s", item)
		}
	}
	fmt.Fprintf(&b, "\n</%s>", tag)
	return b.String()
}

func buildDatetimeSection(timezone string) string {
	loc := time.UTC
	if timezone != "" {
		if tz, err := time.LoadLocation(timezone); err == nil {
			loc = tz
		}
	}
	return fmt.Sprintf("<current_datetime>\n%s\n</current_datetime>", time.Now().In(loc).Format("2006-01-02 15:04:05 MST"))
}

// ExecutionLogEntry records one observable moment of a run for callers that
// want a structured trace alongside the final text (spec.md 4.6's
// execution log), built from the loop's event stream rather than threaded
// through the loop itself.
type ExecutionLogEntry struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// AgentConfig configures an Agent. Either SystemPrompt or Prompt should be
// set; if SystemPrompt is empty and Prompt has no name, description or role,
// the prompt is built with a generic helpful-assistant description and three
// default instructions (unless Prompt already lists instructions).
type AgentConfig struct {
	Name string

	SystemPrompt string
	Prompt       PromptConfig

	Tools    []Tool
	MaxSteps int

	ThreadID string

	Model               string
	TokenLimit          int
	EnableSummarization bool
	Summarizer          RoundSummarizer

	ExecutorConfig *ExecutorConfig
	Hooks          []AgentHook
	Checkpoints    CheckpointStore
	Guard          ToolResultGuard
	Loop           LoopConfig

	Logger *slog.Logger
}

// Agent is the user-facing façade over AgentState/EventEmitter/
// TokenManager/ToolExecutor/AgentLoop/HookManager: it owns one run's worth
// of collaborators, assembles the system prompt, and accumulates an
// execution log from the loop's event stream. Run/RunStream/
// ProvideUserInput/Resume* are the only methods most callers need.
type Agent struct {
	Name         string
	SystemPrompt string

	Provider LLMProvider
	Registry *ToolRegistry
	Executor *Executor
	TokenMgr *TokenManager
	Hooks    *HookManager
	Events   *EventEmitter
	Stats    *StatsCollector
	Loop     *AgentLoop

	State *State

	ExecutionLogs []ExecutionLogEntry
}

// NewAgent wires an Agent's collaborators from config and assembles its
// system prompt (config.SystemPrompt verbatim if set, otherwise built from
// config.Prompt).
func NewAgent(provider LLMProvider, config AgentConfig) *Agent {
	name := config.Name
	if name == "" {
		name = "agent"
	}
	maxSteps := config.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 25
	}

	registry := NewToolRegistry()
	for _, t := range config.Tools {
		registry.Register(t)
	}

	execConfig := config.ExecutorConfig
	if execConfig == nil {
		execConfig = DefaultExecutorConfig()
	}
	executor := NewExecutor(registry, execConfig)

	var tokenMgr *TokenManager
	if config.TokenLimit > 0 {
		tokenMgr = NewTokenManager(config.Model, config.TokenLimit, config.Summarizer, config.Logger)
		tokenMgr.EnableSummarization = config.EnableSummarization
	}

	hooks := NewHookManager()
	for _, h := range config.Hooks {
		hooks.Register(h)
	}

	runID := uuid.NewString()
	stats := NewStatsCollector(runID)

	a := &Agent{
		Name:     name,
		Provider: provider,
		Registry: registry,
		Executor: executor,
		TokenMgr: tokenMgr,
		Hooks:    hooks,
		Stats:    stats,
	}

	sink := NewCallbackSink(a.collectExecutionLog)
	a.Events = NewEventEmitter(runID, NewMultiSink(sink, statsSink{stats}))

	systemPrompt := config.SystemPrompt
	if systemPrompt == "" {
		promptCfg := config.Prompt
		if promptCfg.Name == "" && promptCfg.Description == "" && promptCfg.Role == "" {
			promptCfg.Description = "You are a helpful AI assistant."
			if len(promptCfg.Instructions) == 0 {
				promptCfg.Instructions = []string{
					"Always think step by step",
					"Use available tools when appropriate",
					"Provide clear and accurate responses",
				}
			}
		}
		systemPrompt = buildSystemPrompt(promptCfg)
	} else if config.Prompt.WorkspaceDir != "" && !strings.Contains(systemPrompt, "workspace_info") {
		systemPrompt = systemPrompt + fmt.Sprintf(
			"\n\n<workspace_info>\nCurrent working directory: `%s`\nAll relative file paths are resolved relative to this directory.\n</workspace_info>",
			config.Prompt.WorkspaceDir,
		)
	}
	a.SystemPrompt = systemPrompt

	threadID := config.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	a.State = NewState(threadID, systemPrompt, maxSteps)

	loopConfig := config.Loop
	a.Loop = NewAgentLoop(provider, config.Model, executor, tokenMgr, hooks, a.Events, config.Checkpoints, loopConfig)
	a.Loop.Guard = config.Guard
	a.Loop.Stats = stats

	return a
}

// statsSink forwards every event into a StatsCollector, mirroring the role
// the kept event_emitter.go's StatsCollector plays against a plain sink.
type statsSink struct{ stats *StatsCollector }

func (s statsSink) Emit(ctx context.Context, e models.AgentEvent) {
	if s.stats != nil {
		s.stats.OnEvent(ctx, e)
	}
}

// collectExecutionLog appends one ExecutionLogEntry per observable step
// event, mirroring the Python reference's execution_logs accumulator.
func (a *Agent) collectExecutionLog(ctx context.Context, e models.AgentEvent) {
	switch e.Type {
	case models.AgentEventIterStarted:
		a.ExecutionLogs = append(a.ExecutionLogs, ExecutionLogEntry{
			Type: "step",
			Data: map[string]any{"step": e.IterIndex},
		})

	case models.AgentEventModelCompleted:
		data := map[string]any{}
		if e.Stream != nil {
			data["provider"] = e.Stream.Provider
			data["model"] = e.Stream.Model
			data["input_tokens"] = e.Stream.InputTokens
			data["output_tokens"] = e.Stream.OutputTokens
		}
		a.ExecutionLogs = append(a.ExecutionLogs, ExecutionLogEntry{Type: "llm_response", Data: data})

	case models.AgentEventToolStarted:
		data := map[string]any{}
		if e.Tool != nil {
			data["tool"] = e.Tool.Name
			data["call_id"] = e.Tool.CallID
			data["arguments"] = string(e.Tool.ArgsJSON)
		}
		a.ExecutionLogs = append(a.ExecutionLogs, ExecutionLogEntry{Type: "tool_call", Data: data})

	case models.AgentEventToolFinished:
		data := map[string]any{}
		if e.Tool != nil {
			data["tool"] = e.Tool.Name
			data["success"] = e.Tool.Success
			data["content"] = string(e.Tool.ResultJSON)
			data["execution_time"] = e.Tool.Elapsed.String()
		}
		a.ExecutionLogs = append(a.ExecutionLogs, ExecutionLogEntry{Type: "tool_result", Data: data})

	case models.AgentEventUserInputRequired:
		data := map[string]any{}
		if e.Input != nil {
			data["tool_call_id"] = e.Input.ToolCallID
			data["fields"] = e.Input.Fields
			data["context"] = e.Input.Context
		}
		a.ExecutionLogs = append(a.ExecutionLogs, ExecutionLogEntry{Type: "user_input_required", Data: data})

	case models.AgentEventRunFinished:
		a.ExecutionLogs = append(a.ExecutionLogs, ExecutionLogEntry{
			Type: "completion",
			Data: map[string]any{
				"total_input_tokens":  a.State.TotalInputTokens,
				"total_output_tokens": a.State.TotalOutputTokens,
			},
		})

	case models.AgentEventRunError:
		message := ""
		if e.Error != nil {
			message = e.Error.Message
		}
		entryType := "error"
		if a.State.ErrorMessage == "max_steps_reached" {
			entryType = "max_steps_reached"
		}
		a.ExecutionLogs = append(a.ExecutionLogs, ExecutionLogEntry{
			Type: entryType,
			Data: map[string]any{"message": message},
		})
	}
}

// AddUserMessage appends a user-role message to the conversation ahead of
// the next Run/RunStream call.
func (a *Agent) AddUserMessage(content string) {
	_ = a.State.AppendMessage(models.Message{
		Role:      models.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	})
}

// Run drives the agent to completion, a user-input pause, or an error,
// resetting the execution log for this call. The returned logs describe
// every step, tool call, and terminal event observed along the way.
func (a *Agent) Run(ctx context.Context) (string, []ExecutionLogEntry, error) {
	a.ExecutionLogs = nil
	result, err := a.Loop.Run(ctx, a.State)
	return result, a.ExecutionLogs, err
}

// RunStream is the streaming counterpart of Run.
func (a *Agent) RunStream(ctx context.Context) <-chan *ResponseChunk {
	a.ExecutionLogs = nil
	return a.Loop.RunStream(ctx, a.State)
}

// ProvideUserInput answers a paused get_user_input tool call; callers then
// call Resume to continue the run.
func (a *Agent) ProvideUserInput(values map[string]string) error {
	return a.Loop.ProvideUserInput(a.State, values)
}

// Resume continues a run left Running by ProvideUserInput or reconstructed
// from a checkpoint via NewAgentFromCheckpoint.
func (a *Agent) Resume(ctx context.Context) (string, []ExecutionLogEntry, error) {
	a.ExecutionLogs = nil
	result, err := a.Loop.Resume(ctx, a.State)
	return result, a.ExecutionLogs, err
}

// ResumeStream is the streaming counterpart of Resume.
func (a *Agent) ResumeStream(ctx context.Context) <-chan *ResponseChunk {
	a.ExecutionLogs = nil
	return a.Loop.ResumeStream(ctx, a.State)
}

// NewAgentFromCheckpoint rebuilds an Agent around a saved checkpoint: a
// fresh set of collaborators wired exactly as NewAgent would, with State
// replaced by StateFromCheckpoint(cp) so the next call is Resume rather
// than Run.
func NewAgentFromCheckpoint(provider LLMProvider, config AgentConfig, cp *models.Checkpoint) *Agent {
	a := NewAgent(provider, config)
	a.State = StateFromCheckpoint(cp)
	return a
}
