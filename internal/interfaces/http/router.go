package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	appcomm "github.com/alissayuxuan/OMNI-SYS/internal/application/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/domain/agent"
	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/auth"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/services"
	"github.com/alissayuxuan/OMNI-SYS/internal/interfaces/http/handlers"
	"github.com/alissayuxuan/OMNI-SYS/internal/interfaces/http/handlers/common"
	"github.com/alissayuxuan/OMNI-SYS/internal/interfaces/http/middleware"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

// RouterDeps holds everything the HTTP bridge is built from. Redis and Hub
// may be nil; the features that need them are then left out.
type RouterDeps struct {
	Manager       *appcomm.Manager
	Agents        agent.Repository
	Issuer        *auth.LocalIssuer
	JWT           *auth.JWTService
	Inbox         comm.Inbox
	Buffer        comm.OutboundBuffer
	Hub           *services.DeliveryHub
	Redis         *redis.Client
	Metrics       http.Handler
	HealthChecks  map[string]handlers.HealthCheck
	RequireAuth   bool
	AuthRateLimit int
	Logger        logger.Interface
}

// Router represents the HTTP router configuration
type Router struct {
	engine         *gin.Engine
	deps           RouterDeps
	authHandler    *handlers.AuthHandler
	agentHandler   *handlers.AgentHandler
	commHandler    *handlers.CommHandler
	healthHandler  *handlers.HealthHandler
	sseHandler     *common.SSEHandler
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.RateLimiter
}

// NewRouter creates a new HTTP router with all dependencies
func NewRouter(deps RouterDeps) *Router {
	engine := gin.New()
	log := deps.Logger

	r := &Router{
		engine:         engine,
		deps:           deps,
		authHandler:    handlers.NewAuthHandler(deps.Issuer, log),
		agentHandler:   handlers.NewAgentHandler(deps.Agents, log),
		commHandler:    handlers.NewCommHandler(deps.Manager, deps.Inbox, deps.Buffer, log),
		healthHandler:  handlers.NewHealthHandler(deps.HealthChecks, deps.Manager.Len),
		authMiddleware: middleware.NewAuthMiddleware(deps.JWT, log),
	}
	if deps.Hub != nil {
		r.sseHandler = common.NewSSEHandler(deps.Hub, log)
	}
	if deps.Redis != nil && deps.AuthRateLimit > 0 {
		r.rateLimiter = middleware.NewRateLimiter(deps.Redis, "auth", deps.AuthRateLimit, time.Minute)
	}
	return r
}

// SetupRoutes configures all HTTP routes
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger(r.deps.Logger))
	r.engine.Use(middleware.Recovery(r.deps.Logger))

	r.engine.GET("/health", r.healthHandler.Health)
	if r.deps.Metrics != nil {
		r.engine.GET("/metrics", gin.WrapH(r.deps.Metrics))
	}

	api := r.engine.Group("/api")

	authGroup := api.Group("/auth")
	if r.rateLimiter != nil {
		authGroup.Use(r.rateLimiter.Limit())
	}
	{
		authGroup.POST("/token", r.authHandler.IssueToken)
		authGroup.POST("/token/refresh", r.authHandler.RefreshToken)
	}

	protected := api.Group("")
	if r.deps.RequireAuth {
		protected.Use(r.authMiddleware.RequireAuth())
	}

	agents := protected.Group("/agents")
	{
		agents.GET("/by-username/:username", r.agentHandler.GetByUsername)
	}

	nodes := protected.Group("/comm/nodes")
	{
		nodes.GET("", r.commHandler.ListNodes)
		nodes.POST("/:identity", r.commHandler.CreateNode)
		nodes.DELETE("/:identity", r.commHandler.DeleteNode)
		nodes.POST("/:identity/messages", r.commHandler.SendMessage)
		nodes.GET("/:identity/messages", r.commHandler.ListMessages)
		nodes.GET("/:identity/buffer", r.commHandler.GetBuffer)
		if r.sseHandler != nil {
			nodes.GET("/:identity/stream", r.sseHandler.Stream)
		}
	}
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// SilenceGinOutput stops gin from printing its own banner and route table.
func SilenceGinOutput() {
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}
}
