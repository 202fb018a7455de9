package handlers

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/alissayuxuan/OMNI-SYS/internal/shared/errors"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/utils"
)

type AgentHandler struct {
	agents agentFinder
	logger logger.Interface
}

func NewAgentHandler(agents agentFinder, log logger.Interface) *AgentHandler {
	return &AgentHandler{
		agents: agents,
		logger: log,
	}
}

type AgentLookupResponse struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

// GetByUsername handles GET /api/agents/by-username/:username
func (h *AgentHandler) GetByUsername(c *gin.Context) {
	username := c.Param("username")
	if username == "" {
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("username is required"))
		return
	}

	a, err := h.agents.GetByUsername(c.Request.Context(), username)
	if err != nil {
		h.logger.Errorw("failed to look up agent", "username", username, "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}
	if a == nil || a.IsArchived() {
		utils.ErrorResponseWithError(c, apperrors.NewNotFoundError("agent not found", username))
		return
	}

	utils.OKResponse(c, AgentLookupResponse{
		AgentID: a.Identity(),
		Name:    a.Name(),
	})
}
