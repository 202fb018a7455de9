package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	appcomm "github.com/alissayuxuan/OMNI-SYS/internal/application/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	apperrors "github.com/alissayuxuan/OMNI-SYS/internal/shared/errors"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/utils"
)

// CommHandler exposes node management, sending and inbox polling over HTTP.
type CommHandler struct {
	nodes  nodeManager
	inbox  comm.Inbox
	buffer comm.OutboundBuffer
	logger logger.Interface
}

// NewCommHandler creates a CommHandler. inbox and buffer may be nil, in which
// case the endpoints that need them report the store as unavailable.
func NewCommHandler(nodes nodeManager, inbox comm.Inbox, buffer comm.OutboundBuffer, log logger.Interface) *CommHandler {
	return &CommHandler{
		nodes:  nodes,
		inbox:  inbox,
		buffer: buffer,
		logger: log,
	}
}

type CreateNodeRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type NodeResponse struct {
	Identity string `json:"identity"`
	State    string `json:"state"`
}

type NodeListResponse struct {
	Identities []string `json:"identities"`
	Count      int      `json:"count"`
}

type SendMessageRequest struct {
	Destination string          `json:"destination" binding:"required"`
	Protocol    string          `json:"protocol" binding:"required"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
}

type SendMessageResponse struct {
	Identity    string             `json:"identity"`
	Destination string             `json:"destination"`
	Status      appcomm.SendStatus `json:"status"`
}

type BufferDepth struct {
	Destination string `json:"destination"`
	Depth       int64  `json:"depth"`
}

type BufferResponse struct {
	Identity     string        `json:"identity"`
	Destinations []BufferDepth `json:"destinations"`
	Total        int64         `json:"total"`
}

type InboxResponse struct {
	Identity string            `json:"identity"`
	Messages []comm.InboxEntry `json:"messages"`
}

// ListNodes handles GET /api/comm/nodes
func (h *CommHandler) ListNodes(c *gin.Context) {
	ids := h.nodes.Identities()
	utils.OKResponse(c, NodeListResponse{Identities: ids, Count: len(ids)})
}

// CreateNode handles POST /api/comm/nodes/:identity
func (h *CommHandler) CreateNode(c *gin.Context) {
	identity := c.Param("identity")

	var creds *appcomm.Credentials
	if c.Request.ContentLength > 0 {
		var req CreateNodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponseWithError(c, apperrors.NewValidationError("invalid request body", err.Error()))
			return
		}
		if req.Username != "" {
			creds = &appcomm.Credentials{Username: req.Username, Password: req.Password}
		}
	}

	node, err := h.nodes.CreateNode(c.Request.Context(), identity, creds)
	if err != nil {
		h.logger.Warnw("failed to create node", "identity", identity, "error", err)
		utils.ErrorResponseWithError(c, mapCommError(err, identity))
		return
	}

	utils.CreatedResponse(c, NodeResponse{
		Identity: node.Identity(),
		State:    node.State().String(),
	}, "node running")
}

// DeleteNode handles DELETE /api/comm/nodes/:identity
func (h *CommHandler) DeleteNode(c *gin.Context) {
	identity := c.Param("identity")
	if !h.nodes.ShutdownNode(identity) {
		utils.ErrorResponseWithError(c, apperrors.NewNotFoundError("no live node for identity", identity))
		return
	}
	utils.NoContentResponse(c)
}

// SendMessage handles POST /api/comm/nodes/:identity/messages
func (h *CommHandler) SendMessage(c *gin.Context) {
	identity := c.Param("identity")

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("destination and protocol are required", err.Error()))
		return
	}

	var payload any
	if len(req.Payload) > 0 {
		payload = req.Payload
	}

	status, err := h.nodes.Send(c.Request.Context(), identity, req.Destination, req.Protocol, req.Type, payload)
	if err != nil {
		utils.ErrorResponseWithError(c, mapCommError(err, identity))
		return
	}

	utils.OKResponse(c, SendMessageResponse{
		Identity:    identity,
		Destination: req.Destination,
		Status:      status,
	})
}

// ListMessages handles GET /api/comm/nodes/:identity/messages
func (h *CommHandler) ListMessages(c *gin.Context) {
	identity := c.Param("identity")
	if h.inbox == nil {
		utils.ErrorResponseWithError(c, apperrors.NewUnavailableError("inbox is not configured"))
		return
	}
	if err := appcomm.ValidateIdentity(identity); err != nil {
		utils.ErrorResponseWithError(c, mapCommError(err, identity))
		return
	}

	entries, err := h.inbox.List(c.Request.Context(), identity, int64(utils.ParseLimit(c)))
	if err != nil {
		h.logger.Errorw("failed to list inbox", "identity", identity, "error", err)
		utils.ErrorResponseWithError(c, apperrors.NewUnavailableError("inbox unavailable"))
		return
	}
	if entries == nil {
		entries = []comm.InboxEntry{}
	}

	utils.OKResponse(c, InboxResponse{Identity: identity, Messages: entries})
}

// GetBuffer handles GET /api/comm/nodes/:identity/buffer
func (h *CommHandler) GetBuffer(c *gin.Context) {
	identity := c.Param("identity")
	if h.buffer == nil {
		utils.ErrorResponseWithError(c, apperrors.NewUnavailableError("outbound buffer is not configured"))
		return
	}
	if err := appcomm.ValidateIdentity(identity); err != nil {
		utils.ErrorResponseWithError(c, mapCommError(err, identity))
		return
	}

	ctx := c.Request.Context()
	destinations, err := h.buffer.Destinations(ctx, identity)
	if err != nil {
		h.logger.Errorw("failed to list buffered destinations", "identity", identity, "error", err)
		utils.ErrorResponseWithError(c, apperrors.NewUnavailableError("outbound buffer unavailable"))
		return
	}

	resp := BufferResponse{Identity: identity, Destinations: make([]BufferDepth, 0, len(destinations))}
	for _, dest := range destinations {
		depth, err := h.buffer.Len(ctx, identity, dest)
		if err != nil {
			h.logger.Errorw("failed to read buffer depth", "identity", identity, "destination", dest, "error", err)
			utils.ErrorResponseWithError(c, apperrors.NewUnavailableError("outbound buffer unavailable"))
			return
		}
		resp.Destinations = append(resp.Destinations, BufferDepth{Destination: dest, Depth: depth})
		resp.Total += depth
	}

	utils.OKResponse(c, resp)
}

func mapCommError(err error, identity string) error {
	switch {
	case errors.Is(err, comm.ErrInvalidIdentity):
		return apperrors.NewValidationError("invalid identity", identity)
	case errors.Is(err, comm.ErrInvalidPayload):
		return apperrors.NewValidationError("invalid payload", err.Error())
	case errors.Is(err, comm.ErrNodeNotFound):
		return apperrors.NewNotFoundError("no live node for identity", identity)
	case errors.Is(err, comm.ErrIdentityRetired):
		return apperrors.NewConflictError("identity is retired", identity)
	case errors.Is(err, comm.ErrConnection):
		return apperrors.NewUnavailableError("broker connection failed", identity).WithCause(err)
	default:
		return err
	}
}
