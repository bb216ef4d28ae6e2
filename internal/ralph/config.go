// Package ralph implements the iterative self-improvement controller: an
// agent run repeatedly against the same goal, carrying a working-memory
// file and a cached-tool-result context prefix between iterations, until
// a completion condition fires.
package ralph

// ContextStrategy selects which parts of the per-iteration context
// prefix are assembled. Default is every strategy combined.
type ContextStrategy string

const (
	StrategyIterationBoundary ContextStrategy = "iteration_boundary"
	StrategyTokenThreshold    ContextStrategy = "token_threshold"
	StrategyToolLevelCache    ContextStrategy = "tool_level_cache"
	StrategyAll               ContextStrategy = "all"
)

// CompletionCondition names one way a Loop can decide it is done.
type CompletionCondition string

const (
	ConditionPromiseTag    CompletionCondition = "promise_tag"
	ConditionMaxIterations CompletionCondition = "max_iterations"
	ConditionIdleThreshold CompletionCondition = "idle_threshold"
)

// Config tunes a Loop's iteration limit, completion behavior, and
// working-memory location.
type Config struct {
	Enabled bool

	MaxIterations     int
	CompletionPromise string
	IdleThreshold     int

	ContextStrategy      ContextStrategy
	CompletionConditions []CompletionCondition

	// MemoryDir is relative to the workspace root. Default ".ralph".
	MemoryDir string

	SummarizeTokenThreshold int

	// WatchMemoryFile enables an fsnotify watch on the working-memory
	// file so out-of-band edits are picked up at the next iteration
	// boundary without a process restart.
	WatchMemoryFile bool
}

// DefaultConfig mirrors the reference implementation's Ralph defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		MaxIterations:     20,
		CompletionPromise: "TASK COMPLETE",
		IdleThreshold:     3,
		ContextStrategy:   StrategyAll,
		CompletionConditions: []CompletionCondition{
			ConditionPromiseTag,
			ConditionMaxIterations,
			ConditionIdleThreshold,
		},
		MemoryDir:               ".ralph",
		SummarizeTokenThreshold: 50000,
	}
}

func (c Config) hasCondition(cond CompletionCondition) bool {
	for _, have := range c.CompletionConditions {
		if have == cond {
			return true
		}
	}
	return false
}
