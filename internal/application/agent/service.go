// Package agent registers and retires agent accounts.
package agent

import (
	"context"
	"fmt"

	appcomm "github.com/alissayuxuan/OMNI-SYS/internal/application/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/domain/agent"
	apperrors "github.com/alissayuxuan/OMNI-SYS/internal/shared/errors"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

type passwordHasher interface {
	Hash(password string) (string, error)
}

// nodeController is the part of the node manager the service drives.
type nodeController interface {
	CreateNode(ctx context.Context, identity string, creds *appcomm.Credentials) (*appcomm.Node, error)
	ShutdownNode(identity string) bool
}

// Service manages agent accounts. With a nodeController, registering an agent
// starts its node and archiving one stops it; without one the reconcile job
// catches up.
type Service struct {
	agents agent.Repository
	hasher passwordHasher
	nodes  nodeController
	logger logger.Interface
}

func NewService(agents agent.Repository, hasher passwordHasher, nodes nodeController, logger logger.Interface) *Service {
	return &Service{
		agents: agents,
		hasher: hasher,
		nodes:  nodes,
		logger: logger,
	}
}

// Register creates an agent. A node start failure is logged and does not undo
// the registration.
func (s *Service) Register(ctx context.Context, name, username, password string) (*agent.Agent, error) {
	existing, err := s.agents.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.NewConflictError("agent already exists", username)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	a, err := agent.NewAgent(name, username, hash)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := s.agents.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Infow("agent registered", "identity", a.Identity(), "username", a.Username())

	if s.nodes != nil {
		if _, err := s.nodes.CreateNode(ctx, a.Identity(), nil); err != nil {
			s.logger.Warnw("agent registered without a live node", "identity", a.Identity(), "error", err)
		}
	}
	return a, nil
}

// Archive retires the agent named username and stops its node.
func (s *Service) Archive(ctx context.Context, username string) (*agent.Agent, error) {
	a, err := s.agents.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperrors.NewNotFoundError("agent not found", username)
	}
	if a.IsArchived() {
		return a, nil
	}

	a.Archive()
	if err := s.agents.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to archive agent %s: %w", username, err)
	}

	s.logger.Infow("agent archived", "identity", a.Identity(), "username", a.Username())

	if s.nodes != nil {
		s.nodes.ShutdownNode(a.Identity())
	}
	return a, nil
}
