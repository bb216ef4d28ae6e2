package main

import (
	"path/filepath"

	"github.com/agentctl/runtime/internal/agent"
	"github.com/agentctl/runtime/internal/skills"
	"github.com/agentctl/runtime/internal/tools/exec"
	"github.com/agentctl/runtime/internal/tools/files"
)

// defaultTools builds the workspace-scoped tool set every agent, team
// member, and ralph iteration gets by default: file read/write/edit,
// shell execution, and skill loading.
func defaultTools(workspaceDir string, skillMgr *skills.Manager) []agent.Tool {
	fileCfg := files.Config{Workspace: workspaceDir}
	execMgr := exec.NewManager(workspaceDir)

	tools := []agent.Tool{
		files.NewReadTool(fileCfg),
		files.NewWriteTool(fileCfg),
		files.NewEditTool(fileCfg),
		files.NewApplyPatchTool(fileCfg),
		exec.NewExecTool("exec", execMgr),
		exec.NewProcessTool(execMgr),
	}
	if skillMgr != nil {
		tools = append(tools, skillMgr.Tool())
	}
	return tools
}

// skillRoots returns the directories a Manager should search, lowest to
// highest priority: bundled skills shipped with agentctl, then a
// per-workspace .agentctl/skills directory.
func skillRoots(workspaceDir string) []string {
	return []string{
		"/etc/agentctl/skills",
		filepath.Join(workspaceDir, ".agentctl", "skills"),
	}
}
