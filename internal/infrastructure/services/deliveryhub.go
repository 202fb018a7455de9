// Package services provides infrastructure services.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/biztime"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

// DeliveryEventType is the SSE event name used for deliveries.
const DeliveryEventType = "message"

const (
	defaultMaxConnsPerIdentity = 5
	defaultSendBuffer          = 64
)

// SSEConn is one streaming subscriber for an identity's deliveries.
type SSEConn struct {
	ID          string
	Identity    string
	Send        chan []byte
	ConnectedAt time.Time
	closed      atomic.Bool
}

// TrySend queues data without blocking. It returns false when the
// connection is closed or its queue is full.
func (c *SSEConn) TrySend(data []byte) (sent bool) {
	if c.closed.Load() {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Close marks the connection as closed and closes the send channel.
func (c *SSEConn) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.Send)
	}
}

// DeliveryHub fans node deliveries out to SSE subscribers. It implements
// comm.Observer.
type DeliveryHub struct {
	// map[identity]map[connID]*SSEConn
	conns   map[string]map[string]*SSEConn
	connsMu sync.RWMutex

	maxConnsPerIdentity int
	shutdown            atomic.Bool

	logger logger.Interface
}

// DeliveryHubConfig holds configuration for DeliveryHub.
type DeliveryHubConfig struct {
	MaxConnsPerIdentity int // default: 5
}

func NewDeliveryHub(log logger.Interface, config *DeliveryHubConfig) *DeliveryHub {
	maxConns := defaultMaxConnsPerIdentity
	if config != nil && config.MaxConnsPerIdentity > 0 {
		maxConns = config.MaxConnsPerIdentity
	}

	return &DeliveryHub{
		conns:               make(map[string]map[string]*SSEConn),
		maxConnsPerIdentity: maxConns,
		logger:              log,
	}
}

// Register adds a subscriber for identity. It returns nil when the hub is
// shut down or the identity already has the maximum number of subscribers.
func (h *DeliveryHub) Register(connID, identity string) *SSEConn {
	if h.shutdown.Load() {
		return nil
	}

	h.connsMu.Lock()
	defer h.connsMu.Unlock()

	byID := h.conns[identity]
	if len(byID) >= h.maxConnsPerIdentity {
		h.logger.Warnw("SSE connection limit exceeded",
			"identity", identity,
			"limit", h.maxConnsPerIdentity,
		)
		return nil
	}
	if byID == nil {
		byID = make(map[string]*SSEConn)
		h.conns[identity] = byID
	}

	conn := &SSEConn{
		ID:          connID,
		Identity:    identity,
		Send:        make(chan []byte, defaultSendBuffer),
		ConnectedAt: biztime.NowUTC(),
	}
	byID[connID] = conn

	h.logger.Infow("SSE connection registered", "conn_id", connID, "identity", identity)
	return conn
}

// Unregister removes and closes a subscriber.
func (h *DeliveryHub) Unregister(identity, connID string) {
	h.connsMu.Lock()
	conn, ok := h.conns[identity][connID]
	if ok {
		delete(h.conns[identity], connID)
		if len(h.conns[identity]) == 0 {
			delete(h.conns, identity)
		}
	}
	h.connsMu.Unlock()

	if ok {
		conn.Close()
		h.logger.Infow("SSE connection unregistered", "conn_id", connID, "identity", identity)
	}
}

// Observe pushes d to every subscriber of its identity. Slow subscribers
// miss events rather than stall the node's receive loop.
func (h *DeliveryHub) Observe(_ context.Context, d comm.Delivery) {
	h.connsMu.RLock()
	defer h.connsMu.RUnlock()

	subscribers := h.conns[d.Identity]
	if len(subscribers) == 0 {
		return
	}

	data, err := formatSSEEvent(comm.NewInboxEntry(d))
	if err != nil {
		h.logger.Errorw("failed to format SSE event", "identity", d.Identity, "error", err)
		return
	}

	for _, conn := range subscribers {
		if !conn.TrySend(data) {
			h.logger.Warnw("failed to send SSE event, channel full",
				"conn_id", conn.ID,
				"identity", d.Identity,
			)
		}
	}
}

// ConnCount returns the number of subscribers for identity.
func (h *DeliveryHub) ConnCount(identity string) int {
	h.connsMu.RLock()
	defer h.connsMu.RUnlock()
	return len(h.conns[identity])
}

// Shutdown closes every subscriber. Safe to call multiple times.
func (h *DeliveryHub) Shutdown() {
	if !h.shutdown.CompareAndSwap(false, true) {
		return
	}

	h.connsMu.Lock()
	for _, byID := range h.conns {
		for _, conn := range byID {
			conn.Close()
		}
	}
	h.conns = make(map[string]map[string]*SSEConn)
	h.connsMu.Unlock()
}

// SSE format: "event: <type>\ndata: <json>\n\n"
func formatSSEEvent(entry comm.InboxEntry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", DeliveryEventType, data)), nil
}
