package comm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

const DefaultRebuildConcurrency = 8

// ManagerConfig tunes a Manager.
type ManagerConfig struct {
	RebuildConcurrency int
}

// Manager owns every live node in the process and guarantees at most one per
// identity. Concurrent CreateNode calls for the same identity share one
// creation.
type Manager struct {
	builder   NodeBuilder
	directory comm.IdentityDirectory
	metrics   comm.Metrics
	logger    logger.Interface

	concurrency int

	mu       sync.RWMutex
	nodes    map[string]*Node
	inflight singleflight.Group
}

// NewManager creates a Manager. directory may be nil, in which case identities
// are not checked against the CRUD store and Reconcile is unavailable.
func NewManager(cfg ManagerConfig, builder NodeBuilder, directory comm.IdentityDirectory, metrics comm.Metrics, log logger.Interface) *Manager {
	if cfg.RebuildConcurrency <= 0 {
		cfg.RebuildConcurrency = DefaultRebuildConcurrency
	}
	if metrics == nil {
		metrics = comm.NopMetrics{}
	}
	return &Manager{
		builder:     builder,
		directory:   directory,
		metrics:     metrics,
		logger:      log,
		concurrency: cfg.RebuildConcurrency,
		nodes:       make(map[string]*Node),
	}
}

// CreateNode returns the live node for identity, building, connecting and
// starting one if none exists. A freshly started node drains its outbound
// buffer once before it is returned. A connect failure is logged and returned;
// nothing is registered in that case.
func (m *Manager) CreateNode(ctx context.Context, identity string, creds *Credentials) (*Node, error) {
	if err := ValidateIdentity(identity); err != nil {
		return nil, err
	}

	if node := m.Get(identity); node != nil {
		m.logger.Debugw("node already running", "identity", identity)
		return node, nil
	}

	v, err, shared := m.inflight.Do(identity, func() (any, error) {
		if node := m.Get(identity); node != nil {
			return node, nil
		}
		return m.startNode(ctx, identity, creds)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		m.logger.Debugw("joined in-flight node creation", "identity", identity)
	}
	return v.(*Node), nil
}

func (m *Manager) startNode(ctx context.Context, identity string, creds *Credentials) (*Node, error) {
	if m.directory != nil {
		active, err := m.directory.IsActive(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("check identity %s: %w", identity, err)
		}
		if !active {
			return nil, comm.ErrIdentityRetired
		}
	}

	node, err := m.builder.Build(identity, creds)
	if err != nil {
		return nil, fmt.Errorf("build node %s: %w", identity, err)
	}

	if err := node.Connect(ctx); err != nil {
		node.Shutdown()
		m.logger.Errorw("failed to start node", "identity", identity, "error", err)
		return nil, err
	}
	node.Start()

	m.mu.Lock()
	m.nodes[identity] = node
	live := len(m.nodes)
	m.mu.Unlock()
	m.metrics.LiveNodes(live)

	m.logger.Infow("node created", "identity", identity, "live_nodes", live)

	if _, err := node.RetryBuffered(ctx); err != nil {
		m.logger.Warnw("initial buffer drain failed", "identity", identity, "error", err)
	}
	return node, nil
}

// Get returns the live node for identity, or nil.
func (m *Manager) Get(identity string) *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodes[identity]
}

// Identities returns the identities with a live node, sorted.
func (m *Manager) Identities() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of live nodes.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// ShutdownNode stops and forgets the node for identity. It reports whether a
// node was running.
func (m *Manager) ShutdownNode(identity string) bool {
	m.mu.Lock()
	node, ok := m.nodes[identity]
	delete(m.nodes, identity)
	live := len(m.nodes)
	m.mu.Unlock()

	if !ok {
		return false
	}
	node.Shutdown()
	m.metrics.LiveNodes(live)
	m.logger.Infow("node removed", "identity", identity, "live_nodes", live)
	return true
}

// Send publishes payload through the live node for identity. It fails with
// comm.ErrNodeNotFound when no node is running.
func (m *Manager) Send(ctx context.Context, identity, destination, protocol, msgType string, payload any) (SendStatus, error) {
	node := m.Get(identity)
	if node == nil {
		return StatusDropped, fmt.Errorf("%w: %s", comm.ErrNodeNotFound, identity)
	}
	return node.SendMessage(ctx, destination, protocol, msgType, payload)
}

// RebuildAll creates a node for every identity that does not have one.
// Individual failures are logged and skipped. It returns the live node count.
func (m *Manager) RebuildAll(ctx context.Context, identities []string) int {
	var g errgroup.Group
	g.SetLimit(m.concurrency)

	for _, identity := range identities {
		g.Go(func() error {
			if _, err := m.CreateNode(ctx, identity, nil); err != nil {
				m.logger.Warnw("skipping identity during rebuild", "identity", identity, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	live := m.Len()
	m.logger.Infow("nodes rebuilt", "requested", len(identities), "live_nodes", live)
	return live
}

// Reconcile aligns live nodes with the identity directory: missing nodes are
// created and nodes whose identity is no longer active are shut down.
func (m *Manager) Reconcile(ctx context.Context) error {
	if m.directory == nil {
		return errors.New("reconcile requires an identity directory")
	}

	active, err := m.directory.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active identities: %w", err)
	}

	wanted := make(map[string]struct{}, len(active))
	for _, id := range active {
		wanted[id] = struct{}{}
	}

	for _, id := range m.Identities() {
		if _, ok := wanted[id]; !ok {
			m.ShutdownNode(id)
		}
	}

	m.RebuildAll(ctx, active)
	return nil
}

// ShutdownAll stops every live node.
func (m *Manager) ShutdownAll() {
	m.mu.Lock()
	nodes := m.nodes
	m.nodes = make(map[string]*Node)
	m.mu.Unlock()

	for _, node := range nodes {
		node.Shutdown()
	}
	m.metrics.LiveNodes(0)
	m.logger.Infow("all nodes shut down", "count", len(nodes))
}
