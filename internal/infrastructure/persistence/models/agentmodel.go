package models

import (
	"time"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/constants"
)

// AgentModel represents the database persistence model for agents.
type AgentModel struct {
	ID           uint   `gorm:"primarykey"`
	Name         string `gorm:"not null;size:100"`
	Username     string `gorm:"not null;size:150;uniqueIndex:idx_agent_username"`
	PasswordHash string `gorm:"not null;size:255"`
	IsArchived   bool   `gorm:"not null;default:false;index:idx_agent_archived"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName specifies the table name for GORM.
func (AgentModel) TableName() string {
	return constants.TableAgents
}
