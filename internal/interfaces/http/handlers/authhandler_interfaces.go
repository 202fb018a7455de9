package handlers

import (
	"context"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/agent"
	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
)

// tokenIssuer exchanges agent credentials for broker/API tokens.
type tokenIssuer interface {
	Login(ctx context.Context, username, password string) (*comm.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*comm.TokenPair, error)
}

// agentFinder resolves agents for the lookup endpoint.
type agentFinder interface {
	GetByUsername(ctx context.Context, username string) (*agent.Agent, error)
}
