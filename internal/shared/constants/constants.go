package constants

// Environments accepted by --env.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"
)

// Gin context keys set by middleware.
const (
	ContextKeyAgentID   = "agent_id"
	ContextKeyUsername  = "username"
	ContextKeyRequestID = "request_id"
)

const TableAgents = "agents"

// Inbox paging.
const (
	DefaultInboxPageSize = 20
	MaxInboxPageSize     = 100
)

const ErrMsgInternalServerError = "internal server error"
