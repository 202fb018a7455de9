package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/utils"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/version"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
	nodes  func() int
}

// NewHealthHandler reports each named check plus the live node count.
func NewHealthHandler(checks map[string]HealthCheck, liveNodes func() int) *HealthHandler {
	return &HealthHandler{checks: checks, nodes: liveNodes}
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
	LiveNodes  int               `json:"live_nodes"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "ok", Version: version.String(), Components: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Components[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Components[name] = "ok"
	}
	if h.nodes != nil {
		resp.LiveNodes = h.nodes()
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	utils.SuccessResponse(c, code, "", resp)
}
