// Package team implements the Leader/Member multi-agent orchestrator: a
// Leader agent that delegates tasks to a fixed roster of Member agents,
// either through directed or broadcast delegation, or through a
// dependency DAG resolved by topological layering with concurrent
// per-layer execution.
package team

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agentctl/runtime/internal/agent"
	"github.com/agentctl/runtime/pkg/models"
)

const (
	defaultMemberMaxSteps = 10
	defaultLeaderMaxSteps = 50
)

// Team wires a Leader agent and a roster of Member agents around a
// shared LLM provider and tool pool.
type Team struct {
	Config   models.TeamConfig
	Provider agent.LLMProvider
	Model    string

	// AvailableTools is the superset of tools members may draw from;
	// each member is restricted to the intersection named in its
	// TeamMemberConfig.Tools.
	AvailableTools []agent.Tool

	WorkspaceDir   string
	MemberMaxSteps int

	mu         sync.Mutex
	memberRuns []models.MemberRunResult
}

// New builds a Team. tools is the pool members may draw a subset from;
// an empty WorkspaceDir defaults to "./workspace".
func New(provider agent.LLMProvider, config models.TeamConfig, tools []agent.Tool, workspaceDir string) *Team {
	if workspaceDir == "" {
		workspaceDir = "./workspace"
	}
	return &Team{
		Config:         config,
		Provider:       provider,
		AvailableTools: tools,
		WorkspaceDir:   workspaceDir,
		MemberMaxSteps: defaultMemberMaxSteps,
	}
}

func (t *Team) memberByID(id string) (models.TeamMemberConfig, bool) {
	for _, m := range t.Config.Members {
		if m.ID == id {
			return m, true
		}
	}
	return models.TeamMemberConfig{}, false
}

func (t *Team) recordMemberRun(result models.MemberRunResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.memberRuns = append(t.memberRuns, result)
}

// buildLeaderSystemPrompt assembles the Leader's structured prompt:
// team identity, member roster, and delegation instructions that vary
// by Config.DelegateToAll. historyContext, if non-empty, is appended as
// a bounded <previous_interactions> block.
func (t *Team) buildLeaderSystemPrompt(historyContext string) string {
	var members []string
	for i, m := range t.Config.Members {
		entry := fmt.Sprintf(" - Agent %d:\n   - ID: %s\n   - Name: %s\n   - Role: %s", i+1, m.ID, m.Name, m.Role)
		if len(m.Tools) > 0 {
			entry += "\n   - Member tools:\n    - " + strings.Join(m.Tools, "\n    - ")
		} else {
			entry += "\n   - Member tools: (no tools)"
		}
		if m.Instructions != "" {
			entry += "\n   - Instructions: " + m.Instructions
		}
		members = append(members, entry)
	}

	description := t.Config.Description
	if description == "" {
		description = "A collaborative team of specialized agents"
	}

	var delegation string
	if t.Config.DelegateToAll {
		delegation = "- You cannot use a member tool directly. You can only delegate tasks to members.\n" +
			"- Use the `delegate_task_to_all_members` tool to send the task to ALL team members.\n" +
			"- When you delegate a task, provide a clear description of the task.\n" +
			"- You must always analyze the responses from members before responding to the user.\n" +
			"- After analyzing the responses from the members, if you feel the task has been completed, you can stop and respond to the user.\n" +
			"- If you are NOT satisfied with the responses from the members, you should re-assign the task."
	} else {
		delegation = "- Your role is to delegate tasks to members in your team with the highest likelihood of completing the user's request.\n" +
			"- Carefully analyze the tools available to the members and their roles before delegating tasks.\n" +
			"- You cannot use a member tool directly. You can only delegate tasks to members.\n" +
			"- When you delegate a task to another member, make sure to include the member_id and a clear task description.\n" +
			"- You can delegate tasks to multiple members at once.\n" +
			"- You must always analyze the responses from members before responding to the user.\n" +
			"- After analyzing the responses from the members, if you feel the task has been completed, you can stop and respond to the user.\n" +
			"- If you are NOT satisfied with the responses from the members, you should re-assign the task to a different member.\n" +
			"- For simple greetings, thanks, or questions about the team itself, you should respond directly.\n" +
			"- For all work requests, tasks, or questions requiring expertise, route to appropriate team members."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the leader of a team of AI Agents.\n\n")
	fmt.Fprintf(&b, "Your task is to coordinate the team to complete the user's request.\n\n")
	fmt.Fprintf(&b, "<team_name>\n%s\n</team_name>\n\n", t.Config.Name)
	fmt.Fprintf(&b, "<team_description>\n%s\n</team_description>\n\n", description)
	fmt.Fprintf(&b, "<team_members>\n%s\n</team_members>\n\n", strings.Join(members, "\n"))
	fmt.Fprintf(&b, "<how_to_respond>\n%s\n</how_to_respond>", delegation)

	if t.Config.LeaderInstructions != "" {
		fmt.Fprintf(&b, "\n\n<instructions>\n%s\n</instructions>", t.Config.LeaderInstructions)
	}
	if historyContext != "" {
		fmt.Fprintf(&b, "\n\n<previous_interactions>\n%s\n\nUse the previous interactions to maintain continuity and context.\n</previous_interactions>", historyContext)
	}

	return b.String()
}

// memberTools returns the subset of AvailableTools named in member.Tools,
// in AvailableTools' order.
func (t *Team) memberTools(member models.TeamMemberConfig) []agent.Tool {
	if len(member.Tools) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(member.Tools))
	for _, name := range member.Tools {
		allowed[name] = true
	}
	var tools []agent.Tool
	for _, tool := range t.AvailableTools {
		if allowed[tool.Name()] {
			tools = append(tools, tool)
		}
	}
	return tools
}

// runMember spawns a transient Agent for member, runs task to
// completion, and reports the outcome as a MemberRunResult. A run that
// errors (LLM failure or step-limit exhaustion) is a failed, not
// fatal, result.
func (t *Team) runMember(ctx context.Context, member models.TeamMemberConfig, task string) models.MemberRunResult {
	systemPrompt := fmt.Sprintf("You are %s, a %s.\n\n%s\n\nFocus on your area of expertise and provide clear, actionable responses.\n",
		member.Name, member.Role, member.Instructions)

	maxSteps := t.MemberMaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMemberMaxSteps
	}

	a := agent.NewAgent(t.Provider, agent.AgentConfig{
		Name:         member.Name,
		SystemPrompt: systemPrompt,
		Tools:        t.memberTools(member),
		MaxSteps:     maxSteps,
		Model:        t.Model,
		Prompt:       agent.PromptConfig{WorkspaceDir: t.WorkspaceDir},
	})
	a.AddUserMessage(task)

	response, _, err := a.Run(ctx)

	result := models.MemberRunResult{
		MemberName: member.Name,
		MemberRole: member.Role,
		Task:       task,
		Response:   response,
		Steps:      a.State.CurrentStep,
		Metadata: map[string]any{
			"input_tokens":  a.State.TotalInputTokens,
			"output_tokens": a.State.TotalOutputTokens,
		},
	}
	if err != nil {
		result.Error = err.Error()
		result.Success = false
		return result
	}
	result.Success = response != "" && response != agent.WaitingForInputSentinel
	return result
}

// Run drives the team in standard mode: a Leader agent delegates to one
// or all members via a dynamically-built delegation tool, then
// summarizes. maxSteps bounds the Leader's own step budget; zero
// defaults to 50.
func (t *Team) Run(ctx context.Context, message string, maxSteps int) (*models.TeamRunResponse, error) {
	t.mu.Lock()
	t.memberRuns = nil
	t.mu.Unlock()

	if maxSteps <= 0 {
		maxSteps = defaultLeaderMaxSteps
	}

	var delegateTool agent.Tool
	if t.Config.DelegateToAll {
		delegateTool = t.newDelegateToAllMembersTool()
	} else {
		delegateTool = t.newDelegateToMemberTool()
	}

	leader := agent.NewAgent(t.Provider, agent.AgentConfig{
		Name:         t.Config.Name,
		SystemPrompt: t.buildLeaderSystemPrompt(""),
		Tools:        []agent.Tool{delegateTool},
		MaxSteps:     maxSteps,
		Model:        t.Model,
		Prompt:       agent.PromptConfig{WorkspaceDir: t.WorkspaceDir},
	})
	leader.AddUserMessage(message)

	response, _, err := leader.Run(ctx)
	success := err == nil && response != "" && response != agent.WaitingForInputSentinel

	t.mu.Lock()
	memberRuns := append([]models.MemberRunResult(nil), t.memberRuns...)
	t.mu.Unlock()

	totalSteps := leader.State.CurrentStep
	for _, m := range memberRuns {
		totalSteps += m.Steps
	}

	message0 := response
	if err != nil {
		message0 = fmt.Sprintf("Team execution failed: %s", err.Error())
	}

	return &models.TeamRunResponse{
		Success:    success,
		TeamName:   t.Config.Name,
		Message:    message0,
		MemberRuns: memberRuns,
		TotalSteps: totalSteps,
		Iterations: len(memberRuns),
		Metadata: map[string]any{
			"input_tokens":  leader.State.TotalInputTokens,
			"output_tokens": leader.State.TotalOutputTokens,
		},
	}, nil
}

// resolveDependencies topologically layers tasks by depends_on edges:
// each layer contains every task whose dependencies are already in a
// prior layer, so tasks within a layer may run concurrently.
func resolveDependencies(tasks []*models.TaskWithDependencies) ([][]*models.TaskWithDependencies, error) {
	byID := make(map[string]*models.TaskWithDependencies, len(tasks))
	inDegree := make(map[string]int, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task
		inDegree[task.ID] = len(task.DependsOn)
	}
	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("task %q depends on non-existent task %q", task.ID, dep)
			}
		}
	}

	remaining := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		remaining[task.ID] = true
	}

	var layers [][]*models.TaskWithDependencies
	for len(remaining) > 0 {
		var layerIDs []string
		for id := range remaining {
			if inDegree[id] == 0 {
				layerIDs = append(layerIDs, id)
			}
		}
		if len(layerIDs) == 0 {
			return nil, fmt.Errorf("circular dependency detected among tasks: %v", remainingIDs(remaining))
		}
		sort.Strings(layerIDs)

		layer := make([]*models.TaskWithDependencies, 0, len(layerIDs))
		for _, id := range layerIDs {
			layer = append(layer, byID[id])
		}
		layers = append(layers, layer)

		for _, id := range layerIDs {
			delete(remaining, id)
		}
		for other := range remaining {
			for _, dep := range byID[other].DependsOn {
				if dep == "" {
					continue
				}
				for _, id := range layerIDs {
					if dep == id {
						inDegree[other]--
					}
				}
			}
		}
	}
	return layers, nil
}

func remainingIDs(remaining map[string]bool) []string {
	ids := make([]string, 0, len(remaining))
	for id := range remaining {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// executeTaskWithContext runs one dependency-mode task, injecting the
// results of its completed dependencies as trailing context.
func (t *Team) executeTaskWithContext(ctx context.Context, task *models.TaskWithDependencies, completed map[string]string) {
	task.Status = models.TaskRunning

	member, ok := findMemberByRole(t.Config.Members, task.AssignedTo)
	if !ok {
		task.Status = models.TaskFailed
		task.Result = fmt.Sprintf("Error: No member with role '%s' found", task.AssignedTo)
		return
	}

	description := task.Task
	if len(task.DependsOn) > 0 {
		var parts []string
		parts = append(parts, "\n\nDependent task results:")
		for _, dep := range task.DependsOn {
			if result, ok := completed[dep]; ok {
				parts = append(parts, fmt.Sprintf("\n[%s]: %s", dep, result))
			}
		}
		description += strings.Join(parts, "")
	}

	result := t.runMember(ctx, member, description)
	if result.Success {
		task.Status = models.TaskCompleted
		task.Result = result.Response
	} else {
		task.Status = models.TaskFailed
		if result.Error != "" {
			task.Result = result.Error
		} else {
			task.Result = "Unknown error"
		}
	}
	task.Metadata = map[string]any{
		"member_name": result.MemberName,
		"steps":       result.Steps,
	}
}

func findMemberByRole(members []models.TeamMemberConfig, role string) (models.TeamMemberConfig, bool) {
	for _, m := range members {
		if m.Role == role {
			return m, true
		}
	}
	return models.TeamMemberConfig{}, false
}

// RunWithDependencies executes tasks in dependency mode: topological
// layering, full concurrent join within each layer, and fail-stop
// propagation that marks every task in a later layer "skipped" once any
// task fails.
func (t *Team) RunWithDependencies(ctx context.Context, tasks []*models.TaskWithDependencies) (*models.DependencyRunResponse, error) {
	layers, err := resolveDependencies(tasks)
	if err != nil {
		return &models.DependencyRunResponse{
			Success:  false,
			TeamName: t.Config.Name,
			Message:  fmt.Sprintf("Dependency resolution failed: %s", err.Error()),
		}, nil
	}

	executionOrder := make([][]string, len(layers))
	for i, layer := range layers {
		ids := make([]string, len(layer))
		for j, task := range layer {
			ids[j] = task.ID
		}
		executionOrder[i] = ids
	}

	completed := make(map[string]string)
	totalSteps := 0

	for layerIdx, layer := range layers {
		g, gctx := errgroup.WithContext(ctx)
		for _, task := range layer {
			task := task
			g.Go(func() error {
				t.executeTaskWithContext(gctx, task, completed)
				return nil
			})
		}
		_ = g.Wait()

		var failed *models.TaskWithDependencies
		for _, task := range layer {
			completed[task.ID] = task.Result
			if steps, ok := task.Metadata["steps"].(int); ok {
				totalSteps += steps
			}
			if task.Status == models.TaskFailed && failed == nil {
				failed = task
			}
		}

		if failed != nil {
			for _, remainingLayer := range layers[layerIdx+1:] {
				for _, task := range remainingLayer {
					task.Status = models.TaskSkipped
					task.Result = fmt.Sprintf("Skipped due to dependency failure: %s", failed.ID)
				}
			}

			finalMessage := fmt.Sprintf("Execution failed: task '%s' failed\n\nFailure details:\n%s", failed.ID, failed.Result)
			return &models.DependencyRunResponse{
				Success:        false,
				TeamName:       t.Config.Name,
				Message:        finalMessage,
				Tasks:          dereferenceTasks(tasks),
				ExecutionOrder: executionOrder,
				TotalSteps:     totalSteps,
				Metadata:       map[string]any{"failed_task": failed.ID},
			}, nil
		}
	}

	completedCount := 0
	var summary strings.Builder
	summary.WriteString(fmt.Sprintf("All tasks completed (%d/%d)\n\nResults:\n", len(tasks), len(tasks)))
	for _, task := range tasks {
		if task.Status == models.TaskCompleted {
			completedCount++
		}
		preview := task.Result
		if len(preview) > 200 {
			preview = preview[:200]
		}
		fmt.Fprintf(&summary, "\n[%s] %s: %s...", task.ID, task.Status, preview)
	}

	return &models.DependencyRunResponse{
		Success:        true,
		TeamName:       t.Config.Name,
		Message:        summary.String(),
		Tasks:          dereferenceTasks(tasks),
		ExecutionOrder: executionOrder,
		TotalSteps:     totalSteps,
	}, nil
}

func dereferenceTasks(tasks []*models.TaskWithDependencies) []models.TaskWithDependencies {
	out := make([]models.TaskWithDependencies, len(tasks))
	for i, task := range tasks {
		out[i] = *task
	}
	return out
}
