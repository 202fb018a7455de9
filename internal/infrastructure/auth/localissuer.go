package auth

import (
	"context"
	"fmt"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/agent"
	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

// LocalIssuer issues broker and API tokens against the agent table. It is the
// in-process comm.CredentialIssuer used by the server and by the token endpoints.
type LocalIssuer struct {
	agents agent.Repository
	hasher PasswordHasher
	jwt    *JWTService
	logger logger.Interface
}

func NewLocalIssuer(agents agent.Repository, hasher PasswordHasher, jwt *JWTService, log logger.Interface) *LocalIssuer {
	return &LocalIssuer{
		agents: agents,
		hasher: hasher,
		jwt:    jwt,
		logger: log,
	}
}

// Login checks username and password and issues a token pair.
func (i *LocalIssuer) Login(ctx context.Context, username, password string) (*comm.TokenPair, error) {
	a, err := i.agents.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up agent: %w", err)
	}
	if a == nil || a.IsArchived() {
		i.logger.Warnw("login rejected: unknown or archived agent", "username", username)
		return nil, fmt.Errorf("%w: invalid username or password", comm.ErrCredentials)
	}
	if err := i.hasher.Verify(password, a.PasswordHash()); err != nil {
		i.logger.Warnw("login rejected: wrong password", "username", username)
		return nil, fmt.Errorf("%w: invalid username or password", comm.ErrCredentials)
	}

	pair, err := i.jwt.Generate(a.ID(), a.Username())
	if err != nil {
		return nil, err
	}

	i.logger.Infow("agent logged in", "agent_id", a.ID(), "username", a.Username())
	return toCommPair(pair), nil
}

// Refresh rotates a refresh token. Agents archived since the token was issued
// are rejected.
func (i *LocalIssuer) Refresh(ctx context.Context, refreshToken string) (*comm.TokenPair, error) {
	claims, pair, err := i.jwt.Refresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", comm.ErrCredentials, err)
	}

	a, err := i.agents.GetByID(ctx, claims.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up agent: %w", err)
	}
	if a == nil || a.IsArchived() {
		return nil, fmt.Errorf("%w: agent is no longer active", comm.ErrCredentials)
	}

	return toCommPair(pair), nil
}

func toCommPair(pair *TokenPair) *comm.TokenPair {
	return &comm.TokenPair{
		Access:    pair.AccessToken,
		Refresh:   pair.RefreshToken,
		ExpiresAt: pair.ExpiresAt,
	}
}
