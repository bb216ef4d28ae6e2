package models

// TeamMemberConfig describes one member of a Team: its role-specific
// system-prompt fragment and the subset of the team's available tools it
// may use.
type TeamMemberConfig struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Role         string   `json:"role" yaml:"role"`
	Instructions string   `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Tools        []string `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// TeamConfig configures a Team's Leader and its roster of members.
type TeamConfig struct {
	Name               string             `json:"name" yaml:"name"`
	Description        string             `json:"description,omitempty" yaml:"description,omitempty"`
	Members            []TeamMemberConfig `json:"members" yaml:"members"`
	DelegateToAll      bool               `json:"delegate_to_all,omitempty" yaml:"delegate_to_all,omitempty"`
	LeaderInstructions string             `json:"leader_instructions,omitempty" yaml:"leader_instructions,omitempty"`
}

// MemberRunResult records the outcome of delegating one task to one
// member, in standard or dependency mode.
type MemberRunResult struct {
	MemberName string         `json:"member_name"`
	MemberRole string         `json:"member_role"`
	Task       string         `json:"task"`
	Response   string         `json:"response"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	Steps      int            `json:"steps"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TeamRunResponse is the result of Team.Run (standard mode).
type TeamRunResponse struct {
	Success    bool              `json:"success"`
	TeamName   string            `json:"team_name"`
	Message    string            `json:"message"`
	MemberRuns []MemberRunResult `json:"member_runs"`
	TotalSteps int               `json:"total_steps"`
	Iterations int               `json:"iterations"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
}

// TaskStatus is a TaskWithDependencies' place in the dependency-mode
// execution lifecycle.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// TaskWithDependencies is one node of a dependency-mode task DAG. Status
// and Result are mutated in place as Team.RunWithDependencies executes it.
type TaskWithDependencies struct {
	ID         string         `json:"id"`
	Task       string         `json:"task"`
	AssignedTo string         `json:"assigned_to"`
	DependsOn  []string       `json:"depends_on,omitempty"`
	Status     TaskStatus     `json:"status,omitempty"`
	Result     string         `json:"result,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// DependencyRunResponse is the result of Team.RunWithDependencies.
type DependencyRunResponse struct {
	Success        bool                   `json:"success"`
	TeamName       string                 `json:"team_name"`
	Message        string                 `json:"message"`
	Tasks          []TaskWithDependencies `json:"tasks"`
	ExecutionOrder [][]string             `json:"execution_order"`
	TotalSteps     int                    `json:"total_steps"`
	Metadata       map[string]any         `json:"metadata,omitempty"`
}
