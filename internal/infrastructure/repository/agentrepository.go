package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/agent"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/persistence/mappers"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/persistence/models"
	apperrors "github.com/alissayuxuan/OMNI-SYS/internal/shared/errors"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

// AgentRepositoryImpl implements the agent.Repository interface.
type AgentRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.AgentMapper
	logger logger.Interface
}

// NewAgentRepository creates a new agent repository instance.
func NewAgentRepository(db *gorm.DB, logger logger.Interface) *AgentRepositoryImpl {
	return &AgentRepositoryImpl{
		db:     db,
		mapper: mappers.NewAgentMapper(),
		logger: logger,
	}
}

// Create inserts a new agent and assigns its ID.
func (r *AgentRepositoryImpl) Create(ctx context.Context, a *agent.Agent) error {
	model := r.mapper.ToModel(a)

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicate(err) {
			return apperrors.NewConflictError("agent username already exists", a.Username())
		}
		r.logger.Errorw("failed to create agent in database", "error", err)
		return fmt.Errorf("failed to create agent: %w", err)
	}

	if err := a.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set agent ID: %w", err)
	}

	r.logger.Infow("agent created successfully", "id", model.ID, "username", model.Username)
	return nil
}

// GetByID retrieves an agent by its ID.
func (r *AgentRepositoryImpl) GetByID(ctx context.Context, id uint) (*agent.Agent, error) {
	var model models.AgentModel

	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get agent by ID", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return r.mapper.ToEntity(&model), nil
}

// GetByUsername retrieves an agent by its login name.
func (r *AgentRepositoryImpl) GetByUsername(ctx context.Context, username string) (*agent.Agent, error) {
	var model models.AgentModel

	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get agent by username", "username", username, "error", err)
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return r.mapper.ToEntity(&model), nil
}

// ListActive returns every agent that is not archived, ordered by ID.
func (r *AgentRepositoryImpl) ListActive(ctx context.Context) ([]*agent.Agent, error) {
	var list []models.AgentModel

	if err := r.db.WithContext(ctx).
		Where("is_archived = ?", false).
		Order("id ASC").
		Find(&list).Error; err != nil {
		r.logger.Errorw("failed to list active agents", "error", err)
		return nil, fmt.Errorf("failed to list active agents: %w", err)
	}

	agents := make([]*agent.Agent, 0, len(list))
	for i := range list {
		agents = append(agents, r.mapper.ToEntity(&list[i]))
	}
	return agents, nil
}

// Update saves name, password hash and archive flag.
func (r *AgentRepositoryImpl) Update(ctx context.Context, a *agent.Agent) error {
	result := r.db.WithContext(ctx).
		Model(&models.AgentModel{}).
		Where("id = ?", a.ID()).
		Updates(map[string]any{
			"name":          a.Name(),
			"password_hash": a.PasswordHash(),
			"is_archived":   a.IsArchived(),
			"updated_at":    a.UpdatedAt(),
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update agent", "id", a.ID(), "error", result.Error)
		return fmt.Errorf("failed to update agent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("agent not found")
	}
	return nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
