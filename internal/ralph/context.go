package ralph

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Summarizer condenses text, used both for long tool results and for
// end-of-iteration summaries. A nil Summarizer falls back to
// deterministic truncation.
type Summarizer func(ctx context.Context, prompt string) (string, error)

// ContextManager builds the per-iteration context prefix from the
// working memory, the tool-result cache, and prior iteration summaries.
type ContextManager struct {
	config             Config
	cache              *ToolResultCache
	memory             *WorkingMemory
	summarize          Summarizer
	iterationSummaries map[int]string
}

func NewContextManager(config Config, cache *ToolResultCache, memory *WorkingMemory, summarize Summarizer) *ContextManager {
	return &ContextManager{
		config:             config,
		cache:              cache,
		memory:             memory,
		summarize:          summarize,
		iterationSummaries: make(map[int]string),
	}
}

// SummarizeToolResult passes content of at most 500 characters through
// unchanged; longer content is LLM-summarized if a Summarizer was
// supplied. Without one, content of more than 20 lines is cut to its
// first 10 lines and content over 1000 characters to its first 500, each
// plus a count of what was dropped; other content is returned unchanged.
func (c *ContextManager) SummarizeToolResult(ctx context.Context, toolName, content string) (string, error) {
	if len(content) <= 500 {
		return content, nil
	}

	if c.summarize != nil {
		prompt := fmt.Sprintf("Summarize this %s result concisely:\n%s", toolName, truncateRunes(content, 5000))
		return c.summarize(ctx, prompt)
	}

	lines := strings.Split(content, "\n")
	if len(lines) > 20 {
		preview := strings.Join(lines[:10], "\n")
		return fmt.Sprintf("%s\n... (%d more lines)", preview, len(lines)-10), nil
	}
	if len(content) > 1000 {
		return fmt.Sprintf("%s... (%d more chars)", content[:500], len(content)-500), nil
	}
	return content, nil
}

// ProcessToolResult summarizes and, when the cache strategy applies,
// caches content under toolCallID. It returns what the agent should see
// in context: the summary if caching, the raw content otherwise.
func (c *ContextManager) ProcessToolResult(ctx context.Context, toolCallID, toolName string, arguments map[string]any, content string, iteration int) (string, error) {
	if c.config.ContextStrategy != StrategyToolLevelCache && c.config.ContextStrategy != StrategyAll {
		return content, nil
	}

	summary, err := c.SummarizeToolResult(ctx, toolName, content)
	if err != nil {
		return "", err
	}
	c.cache.Store(toolCallID, toolName, arguments, content, summary, iteration)
	return summary, nil
}

// SummarizeIteration records and returns a short summary of one
// iteration's work, either LLM-generated or a placeholder pointing back
// at working memory.
func (c *ContextManager) SummarizeIteration(ctx context.Context, iteration int, messagesContent string) (string, error) {
	var summary string
	if c.summarize != nil {
		prompt := fmt.Sprintf("Summarize iteration %d progress:\n%s", iteration, truncateRunes(messagesContent, 8000))
		s, err := c.summarize(ctx, prompt)
		if err != nil {
			return "", err
		}
		summary = s
	} else {
		summary = fmt.Sprintf("Iteration %d completed. See working memory for details.", iteration)
	}
	c.iterationSummaries[iteration] = summary
	return summary, nil
}

// BuildContextPrefix assembles the working-memory summary, the last
// three iteration summaries, and the last 10 tool-result summaries into
// one prefix to prepend to the next iteration's prompt.
func (c *ContextManager) BuildContextPrefix() string {
	var parts []string
	parts = append(parts, c.memoryContextString())

	if len(c.iterationSummaries) > 0 {
		parts = append(parts, "\n## Previous Iterations")
		iterations := make([]int, 0, len(c.iterationSummaries))
		for it := range c.iterationSummaries {
			iterations = append(iterations, it)
		}
		sort.Ints(iterations)
		start := len(iterations) - 3
		if start < 0 {
			start = 0
		}
		for _, it := range iterations[start:] {
			parts = append(parts, fmt.Sprintf("\n### Iteration %d\n%s", it, c.iterationSummaries[it]))
		}
	}

	recent := c.cache.Recent(10)
	if len(recent) > 0 {
		parts = append(parts, "\n## Recent Tool Results (Summaries)")
		for _, r := range recent {
			summary := r.Summary
			suffix := ""
			if len(summary) > 200 {
				summary = summary[:200]
				suffix = "..."
			}
			parts = append(parts, fmt.Sprintf("\n- [%s] %s%s", r.ToolName, summary, suffix))
		}
	}

	return strings.Join(parts, "\n")
}

func (c *ContextManager) memoryContextString() string {
	s := c.memory.GetSummary()
	lines := []string{
		fmt.Sprintf("## Working Memory (Iteration %d)", s.Iteration),
		"",
		fmt.Sprintf("Files Modified: %d", s.FilesModifiedCount),
		fmt.Sprintf("Pending Tasks: %d", s.PendingTodos),
		fmt.Sprintf("Completed Tasks: %d", s.CompletedTodos),
	}

	if len(s.RecentProgress) > 0 {
		lines = append(lines, "", "### Recent Progress")
		for _, p := range s.RecentProgress {
			lines = append(lines, "- "+p)
		}
	}

	if len(s.RecentFindings) > 0 {
		lines = append(lines, "", "### Key Findings")
		for _, f := range s.RecentFindings {
			lines = append(lines, "- "+f)
		}
	}

	var pending []string
	for _, e := range c.memory.ByCategory(CategoryTodo) {
		if t, ok := e.Value.(TodoEntry); ok && !t.Completed {
			pending = append(pending, t.Task)
		}
	}
	if len(pending) > 0 {
		lines = append(lines, "", "### Pending Tasks")
		for _, t := range pending {
			lines = append(lines, "- [ ] "+t)
		}
	}

	if len(s.Errors) > 0 {
		lines = append(lines, "", "### Errors to Address")
		for _, e := range s.Errors {
			lines = append(lines, "- "+e.Error)
		}
	}

	return strings.Join(lines, "\n")
}

// GetFullToolResult retrieves an earlier tool call's uncompressed
// output, for a get_cached_result tool implementation.
func (c *ContextManager) GetFullToolResult(toolCallID string) (string, bool) {
	return c.cache.GetFullContent(toolCallID)
}

func (c *ContextManager) Clear() {
	c.cache.Clear()
	c.iterationSummaries = make(map[int]string)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
