// Package common provides shared HTTP handler utilities.
package common

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/services"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

const (
	// SSEKeepaliveInterval is the interval for sending keepalive messages.
	SSEKeepaliveInterval = 30 * time.Second

	// SSEContentType is the content type for SSE responses.
	SSEContentType = "text/event-stream"
)

// SSEHandler streams an identity's deliveries as server-sent events.
type SSEHandler struct {
	hub       *services.DeliveryHub
	logger    logger.Interface
	keepalive time.Duration
}

func NewSSEHandler(hub *services.DeliveryHub, log logger.Interface) *SSEHandler {
	return &SSEHandler{
		hub:       hub,
		logger:    log,
		keepalive: SSEKeepaliveInterval,
	}
}

// SetupSSEResponse sets common SSE response headers.
func SetupSSEResponse(c *gin.Context) {
	c.Header("Content-Type", SSEContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// Stream handles GET /api/comm/nodes/:identity/stream
func (h *SSEHandler) Stream(c *gin.Context) {
	identity := c.Param("identity")
	connID := uuid.New().String()

	conn := h.hub.Register(connID, identity)
	if conn == nil {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections"})
		return
	}
	defer h.hub.Unregister(identity, connID)

	SetupSSEResponse(c)
	c.Status(http.StatusOK)
	if _, err := c.Writer.WriteString(": connected\n\n"); err != nil {
		h.logger.Warnw("SSE initial write error", "conn_id", connID, "error", err)
		return
	}
	c.Writer.Flush()

	h.runEventLoop(c, conn)
}

// runEventLoop blocks until the client disconnects, a write fails or the hub
// closes the connection.
func (h *SSEHandler) runEventLoop(c *gin.Context, conn *services.SSEConn) {
	keepAliveTicker := time.NewTicker(h.keepalive)
	defer keepAliveTicker.Stop()

	ctx := c.Request.Context()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("SSE connection closed by client", "conn_id", conn.ID, "identity", conn.Identity)
			return

		case data, ok := <-conn.Send:
			if !ok {
				return
			}
			if _, err := c.Writer.Write(data); err != nil {
				h.logger.Warnw("SSE write error", "conn_id", conn.ID, "error", err)
				return
			}
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			if _, err := c.Writer.WriteString(": keepalive\n\n"); err != nil {
				h.logger.Warnw("SSE keepalive error", "conn_id", conn.ID, "error", err)
				return
			}
			c.Writer.Flush()
		}
	}
}
