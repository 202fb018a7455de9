package repository

import (
	"context"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/agent"
)

// AgentDirectory exposes the agent table as the identity directory that node
// management reconciles against.
type AgentDirectory struct {
	agents agent.Repository
}

func NewAgentDirectory(agents agent.Repository) *AgentDirectory {
	return &AgentDirectory{agents: agents}
}

// IsActive reports whether identity names an existing, non-archived agent.
func (d *AgentDirectory) IsActive(ctx context.Context, identity string) (bool, error) {
	id, ok := agent.ParseIdentity(identity)
	if !ok {
		return false, nil
	}
	a, err := d.agents.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return a != nil && !a.IsArchived(), nil
}

// ListActive returns the identities of all non-archived agents.
func (d *AgentDirectory) ListActive(ctx context.Context) ([]string, error) {
	agents, err := d.agents.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.Identity())
	}
	return ids, nil
}
