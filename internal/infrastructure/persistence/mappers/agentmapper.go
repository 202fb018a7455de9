package mappers

import (
	"github.com/alissayuxuan/OMNI-SYS/internal/domain/agent"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/persistence/models"
)

// AgentMapper converts between the agent entity and its persistence model.
type AgentMapper interface {
	ToEntity(model *models.AgentModel) *agent.Agent
	ToModel(entity *agent.Agent) *models.AgentModel
}

type agentMapper struct{}

func NewAgentMapper() AgentMapper {
	return &agentMapper{}
}

func (m *agentMapper) ToEntity(model *models.AgentModel) *agent.Agent {
	if model == nil {
		return nil
	}
	return agent.ReconstructAgent(
		model.ID,
		model.Name,
		model.Username,
		model.PasswordHash,
		model.IsArchived,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *agentMapper) ToModel(entity *agent.Agent) *models.AgentModel {
	if entity == nil {
		return nil
	}
	return &models.AgentModel{
		ID:           entity.ID(),
		Name:         entity.Name(),
		Username:     entity.Username(),
		PasswordHash: entity.PasswordHash(),
		IsArchived:   entity.IsArchived(),
		CreatedAt:    entity.CreatedAt(),
		UpdatedAt:    entity.UpdatedAt(),
	}
}
