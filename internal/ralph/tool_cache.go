package ralph

import "time"

// CachedToolResult is one tool call's remembered output: a summary the
// agent sees by default, and the full content it can retrieve on demand
// via get_cached_result.
type CachedToolResult struct {
	ToolCallID  string
	ToolName    string
	Arguments   map[string]any
	FullContent string
	Summary     string
	Timestamp   time.Time
	Iteration   int
}

// ToolResultCache is an LRU cache of tool results, keyed by call ID.
// Storing or reading the full content counts as a use; reading the
// summary does not. An evicted entry's summary is gone as well, so it no
// longer appears in the context prefix built from Recent.
type ToolResultCache struct {
	maxSize     int
	entries     map[string]*CachedToolResult
	accessOrder []string
}

// NewToolResultCache builds a cache holding at most maxSize entries;
// zero or negative defaults to 100.
func NewToolResultCache(maxSize int) *ToolResultCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &ToolResultCache{
		maxSize: maxSize,
		entries: make(map[string]*CachedToolResult),
	}
}

// Store records a tool result, evicting the least-recently-used entry
// (stored or full-content read) if the cache is full and this is a new key.
func (c *ToolResultCache) Store(toolCallID, toolName string, arguments map[string]any, fullContent, summary string, iteration int) {
	if _, exists := c.entries[toolCallID]; !exists && len(c.entries) >= c.maxSize {
		if len(c.accessOrder) > 0 {
			oldest := c.accessOrder[0]
			c.accessOrder = c.accessOrder[1:]
			delete(c.entries, oldest)
		}
	}

	c.entries[toolCallID] = &CachedToolResult{
		ToolCallID:  toolCallID,
		ToolName:    toolName,
		Arguments:   arguments,
		FullContent: fullContent,
		Summary:     summary,
		Timestamp:   time.Now(),
		Iteration:   iteration,
	}
	c.touch(toolCallID)
}

func (c *ToolResultCache) touch(id string) {
	for i, existing := range c.accessOrder {
		if existing == id {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			break
		}
	}
	c.accessOrder = append(c.accessOrder, id)
}

// GetSummary returns a result's summary without affecting LRU order —
// summaries are read on every context-prefix build, so they must not
// count as cache "use".
func (c *ToolResultCache) GetSummary(toolCallID string) (string, bool) {
	result, ok := c.entries[toolCallID]
	if !ok {
		return "", false
	}
	return result.Summary, true
}

// GetFullContent returns the full result and counts as a cache access,
// refreshing the entry's LRU position.
func (c *ToolResultCache) GetFullContent(toolCallID string) (string, bool) {
	result, ok := c.entries[toolCallID]
	if !ok {
		return "", false
	}
	c.touch(toolCallID)
	return result.FullContent, true
}

// ByToolName returns every cached result for the named tool, in LRU
// order (least recently stored or full-content read first).
func (c *ToolResultCache) ByToolName(toolName string) []*CachedToolResult {
	var out []*CachedToolResult
	for _, id := range c.accessOrder {
		if r := c.entries[id]; r.ToolName == toolName {
			out = append(out, r)
		}
	}
	return out
}

// Recent returns the n most recently stored-or-accessed results.
func (c *ToolResultCache) Recent(n int) []*CachedToolResult {
	if n <= 0 || len(c.accessOrder) == 0 {
		return nil
	}
	start := len(c.accessOrder) - n
	if start < 0 {
		start = 0
	}
	out := make([]*CachedToolResult, 0, len(c.accessOrder)-start)
	for _, id := range c.accessOrder[start:] {
		out = append(out, c.entries[id])
	}
	return out
}

func (c *ToolResultCache) Clear() {
	c.entries = make(map[string]*CachedToolResult)
	c.accessOrder = nil
}

func (c *ToolResultCache) Len() int { return len(c.entries) }
