package checkpoint

import "github.com/agentctl/runtime/internal/agent"

var (
	_ agent.CheckpointStore = (*MemoryStore)(nil)
	_ agent.CheckpointStore = (*FileStore)(nil)
	_ agent.CheckpointStore = (*SQLiteStore)(nil)
)
