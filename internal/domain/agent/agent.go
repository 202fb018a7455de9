// Package agent holds the agent account: the CRUD record whose ID is the
// communication identity of its node.
package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/biztime"
)

const (
	maxNameLength     = 100
	maxUsernameLength = 150
)

// Agent is a participant that can send and receive messages.
type Agent struct {
	id           uint
	name         string
	username     string
	passwordHash string
	archived     bool
	createdAt    time.Time
	updatedAt    time.Time
}

// NewAgent validates and creates an unsaved agent.
func NewAgent(name, username, passwordHash string) (*Agent, error) {
	name = strings.TrimSpace(name)
	username = strings.TrimSpace(username)

	if name == "" || len(name) > maxNameLength {
		return nil, fmt.Errorf("agent name must be 1-%d characters", maxNameLength)
	}
	if username == "" || len(username) > maxUsernameLength {
		return nil, fmt.Errorf("agent username must be 1-%d characters", maxUsernameLength)
	}
	if passwordHash == "" {
		return nil, fmt.Errorf("agent password hash is required")
	}

	now := biztime.NowUTC()
	return &Agent{
		name:         name,
		username:     username,
		passwordHash: passwordHash,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructAgent rebuilds an agent from persistence.
func ReconstructAgent(id uint, name, username, passwordHash string, archived bool, createdAt, updatedAt time.Time) *Agent {
	return &Agent{
		id:           id,
		name:         name,
		username:     username,
		passwordHash: passwordHash,
		archived:     archived,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (a *Agent) ID() uint             { return a.id }
func (a *Agent) Name() string         { return a.name }
func (a *Agent) Username() string     { return a.username }
func (a *Agent) PasswordHash() string { return a.passwordHash }
func (a *Agent) IsArchived() bool     { return a.archived }
func (a *Agent) CreatedAt() time.Time { return a.createdAt }
func (a *Agent) UpdatedAt() time.Time { return a.updatedAt }

// Identity is the agent's communication identity: its decimal ID.
func (a *Agent) Identity() string {
	return FormatIdentity(a.id)
}

// SetID assigns the ID after the first save.
func (a *Agent) SetID(id uint) error {
	if a.id != 0 {
		return fmt.Errorf("agent ID already set")
	}
	if id == 0 {
		return fmt.Errorf("agent ID cannot be zero")
	}
	a.id = id
	return nil
}

// Archive retires the agent. Its node is shut down at the next reconcile.
func (a *Agent) Archive() {
	if a.archived {
		return
	}
	a.archived = true
	a.updatedAt = biztime.NowUTC()
}

// FormatIdentity renders an agent ID as an identity.
func FormatIdentity(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseIdentity converts an identity back to an agent ID.
func ParseIdentity(identity string) (uint, bool) {
	id, err := strconv.ParseUint(identity, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Repository persists agents. Lookups return (nil, nil) when nothing matches.
type Repository interface {
	Create(ctx context.Context, a *Agent) error
	GetByID(ctx context.Context, id uint) (*Agent, error)
	GetByUsername(ctx context.Context, username string) (*Agent, error)
	ListActive(ctx context.Context) ([]*Agent, error)
	Update(ctx context.Context, a *Agent) error
}
