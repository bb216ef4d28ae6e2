package ralph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	CategoryProgress  = "progress"
	CategoryFindings  = "findings"
	CategoryTodo      = "todo"
	CategoryDecisions = "decisions"
	CategoryErrors    = "errors"
)

// MemoryEntry is one categorized fact recorded in WorkingMemory.
type MemoryEntry struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	Category  string    `json:"category"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
}

type memoryFile struct {
	CurrentIteration int                    `json:"current_iteration"`
	FilesModified    []string               `json:"files_modified"`
	Entries          map[string]MemoryEntry `json:"entries"`
}

// WorkingMemory is structured, disk-persisted context that survives
// across Loop iterations: progress notes, findings, a todo list,
// decisions, errors, and the set of files touched this iteration. It is
// rewritten to disk on every mutation.
type WorkingMemory struct {
	path             string
	entries          map[string]MemoryEntry
	currentIteration int
	filesModified    map[string]struct{}
}

// NewWorkingMemory loads (or initializes) the memory file at
// <workspaceDir>/<memoryDir>/memory.json.
func NewWorkingMemory(workspaceDir, memoryDir string) *WorkingMemory {
	if memoryDir == "" {
		memoryDir = ".ralph"
	}
	m := &WorkingMemory{
		path:          filepath.Join(workspaceDir, memoryDir, "memory.json"),
		entries:       make(map[string]MemoryEntry),
		filesModified: make(map[string]struct{}),
	}
	m.load()
	return m
}

func (m *WorkingMemory) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return
	}
	var file memoryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return
	}
	m.currentIteration = file.CurrentIteration
	for _, f := range file.FilesModified {
		m.filesModified[f] = struct{}{}
	}
	if file.Entries != nil {
		m.entries = file.Entries
	}
}

func (m *WorkingMemory) save() error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	files := make([]string, 0, len(m.filesModified))
	for f := range m.filesModified {
		files = append(files, f)
	}
	sort.Strings(files)

	file := memoryFile{
		CurrentIteration: m.currentIteration,
		FilesModified:    files,
		Entries:          m.entries,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// SetEntry records a value under key in category, at the current
// iteration, and persists.
func (m *WorkingMemory) SetEntry(key string, value any, category string) error {
	m.entries[key] = MemoryEntry{
		Key:       key,
		Value:     value,
		Category:  category,
		Iteration: m.currentIteration,
		Timestamp: time.Now(),
	}
	return m.save()
}

func (m *WorkingMemory) Get(key string) (any, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// ByCategory returns entries in category, ordered by timestamp (oldest
// first) so callers can take a trailing slice for "recent N".
func (m *WorkingMemory) ByCategory(category string) []MemoryEntry {
	var out []MemoryEntry
	for _, e := range m.entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (m *WorkingMemory) AddProgress(description string) error {
	key := fmt.Sprintf("progress_%d_%s", m.currentIteration, shortID())
	return m.SetEntry(key, description, CategoryProgress)
}

func (m *WorkingMemory) AddFinding(finding string) error {
	key := fmt.Sprintf("finding_%d_%s", m.currentIteration, shortID())
	return m.SetEntry(key, finding, CategoryFindings)
}

// TodoEntry is the value stored for a CategoryTodo entry.
type TodoEntry struct {
	Task      string `json:"task"`
	Completed bool   `json:"completed"`
}

// AddTodo records a pending task and returns its key, for later use
// with CompleteTodo.
func (m *WorkingMemory) AddTodo(task string) (string, error) {
	key := fmt.Sprintf("todo_%s", shortID())
	if err := m.SetEntry(key, TodoEntry{Task: task}, CategoryTodo); err != nil {
		return "", err
	}
	return key, nil
}

func (m *WorkingMemory) CompleteTodo(key string) (bool, error) {
	e, ok := m.entries[key]
	if !ok || e.Category != CategoryTodo {
		return false, nil
	}
	todo, ok := e.Value.(TodoEntry)
	if !ok {
		return false, nil
	}
	todo.Completed = true
	e.Value = todo
	e.Iteration = m.currentIteration
	m.entries[key] = e
	return true, m.save()
}

// DecisionEntry is the value stored for a CategoryDecisions entry.
type DecisionEntry struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

func (m *WorkingMemory) AddDecision(decision, reason string) error {
	key := fmt.Sprintf("decision_%d_%s", m.currentIteration, shortID())
	return m.SetEntry(key, DecisionEntry{Decision: decision, Reason: reason}, CategoryDecisions)
}

// ErrorEntry is the value stored for a CategoryErrors entry.
type ErrorEntry struct {
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}

func (m *WorkingMemory) AddError(errMsg, context string) error {
	key := fmt.Sprintf("error_%d_%s", m.currentIteration, shortID())
	return m.SetEntry(key, ErrorEntry{Error: errMsg, Context: context}, CategoryErrors)
}

func (m *WorkingMemory) RecordFileModified(path string) error {
	m.filesModified[path] = struct{}{}
	return m.save()
}

// FilesModified returns the set of files touched this iteration.
func (m *WorkingMemory) FilesModified() map[string]struct{} {
	out := make(map[string]struct{}, len(m.filesModified))
	for f := range m.filesModified {
		out[f] = struct{}{}
	}
	return out
}

func (m *WorkingMemory) ClearIterationFiles() error {
	m.filesModified = make(map[string]struct{})
	return m.save()
}

func (m *WorkingMemory) IncrementIteration() (int, error) {
	m.currentIteration++
	return m.currentIteration, m.save()
}

func (m *WorkingMemory) CurrentIteration() int { return m.currentIteration }

// Reload re-reads the memory file from disk, discarding in-memory state
// not yet persisted. Used when an external edit is detected.
func (m *WorkingMemory) Reload() {
	m.entries = make(map[string]MemoryEntry)
	m.filesModified = make(map[string]struct{})
	m.currentIteration = 0
	m.load()
}

// Clear resets all memory and removes the backing file.
func (m *WorkingMemory) Clear() error {
	m.entries = make(map[string]MemoryEntry)
	m.filesModified = make(map[string]struct{})
	m.currentIteration = 0
	if _, err := os.Stat(m.path); err == nil {
		return os.Remove(m.path)
	}
	return nil
}

// Path returns the backing file's path, for callers that want to watch it.
func (m *WorkingMemory) Path() string { return m.path }

// Summary is the data behind ContextManager's working-memory block and
// get_status.
type Summary struct {
	Iteration          int
	FilesModifiedCount int
	TotalEntries       int
	PendingTodos       int
	CompletedTodos     int
	RecentProgress     []string
	RecentFindings     []string
	Errors             []ErrorEntry
}

func (m *WorkingMemory) GetSummary() Summary {
	todos := m.ByCategory(CategoryTodo)
	var pending, completed int
	for _, e := range todos {
		if t, ok := e.Value.(TodoEntry); ok {
			if t.Completed {
				completed++
			} else {
				pending++
			}
		}
	}

	progress := m.ByCategory(CategoryProgress)
	recentProgress := lastNStrings(progress)

	findings := m.ByCategory(CategoryFindings)
	recentFindings := lastNStrings(findings)

	var errs []ErrorEntry
	for _, e := range m.ByCategory(CategoryErrors) {
		if err, ok := e.Value.(ErrorEntry); ok {
			errs = append(errs, err)
		}
	}

	return Summary{
		Iteration:          m.currentIteration,
		FilesModifiedCount: len(m.filesModified),
		TotalEntries:       len(m.entries),
		PendingTodos:       pending,
		CompletedTodos:     completed,
		RecentProgress:     recentProgress,
		RecentFindings:     recentFindings,
		Errors:             errs,
	}
}

func lastNStrings(entries []MemoryEntry) []string {
	const n = 5
	start := len(entries) - n
	if start < 0 {
		start = 0
	}
	var out []string
	for _, e := range entries[start:] {
		if s, ok := e.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func shortID() string {
	id := uuid.NewString()
	id = id[:8]
	return id
}
