// Package comm implements the communication node: one broker session per
// identity with buffered, retried delivery of outbound envelopes, and the
// manager that guarantees at most one live node per identity.
package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/goroutine"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

const (
	DefaultRetryInterval  = 10 * time.Second
	DefaultConnectTimeout = 60 * time.Second
	DefaultInboundQueue   = 256
)

// NodeState is the connection state of a node.
type NodeState int32

const (
	StateDisconnected NodeState = iota
	StateConnecting
	StateConnected
	StateSubscribed
)

func (s NodeState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// NodeConfig holds per-node tunables.
type NodeConfig struct {
	Identity       string
	RetryInterval  time.Duration
	ConnectTimeout time.Duration
	InboundQueue   int
}

// NodeDeps are the collaborators a node is assembled from. Transport and
// Buffer are required.
type NodeDeps struct {
	Transport     comm.Transport
	Buffer        comm.OutboundBuffer
	Codecs        *comm.CodecRegistry
	Observer      comm.Observer
	Metrics       comm.Metrics
	Logger        logger.Interface
	Authenticator *Authenticator
}

type inboundMessage struct {
	topic   string
	payload []byte
}

// Node is one identity's broker session plus its send, receive and retry
// behaviour. Create it with NewNode, then Connect and Start.
type Node struct {
	identity       string
	retryInterval  time.Duration
	connectTimeout time.Duration

	transport comm.Transport
	buffer    comm.OutboundBuffer
	codecs    *comm.CodecRegistry
	observer  comm.Observer
	metrics   comm.Metrics
	logger    logger.Interface
	auth      *Authenticator

	state      atomic.Int32
	bufferDown atomic.Bool
	drainMu    sync.Mutex

	inbound chan inboundMessage
	stopCh  chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewNode validates cfg and deps and returns a disconnected node.
func NewNode(cfg NodeConfig, deps NodeDeps) (*Node, error) {
	if err := ValidateIdentity(cfg.Identity); err != nil {
		return nil, err
	}
	if deps.Transport == nil {
		return nil, errors.New("node requires a transport")
	}
	if deps.Buffer == nil {
		return nil, errors.New("node requires an outbound buffer")
	}

	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.InboundQueue <= 0 {
		cfg.InboundQueue = DefaultInboundQueue
	}
	if deps.Codecs == nil {
		deps.Codecs = comm.DefaultCodecRegistry()
	}
	if deps.Metrics == nil {
		deps.Metrics = comm.NopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewLogger()
	}
	log := deps.Logger.With("identity", cfg.Identity)
	if deps.Observer == nil {
		deps.Observer = NewLogObserver(log)
	}

	return &Node{
		identity:       cfg.Identity,
		retryInterval:  cfg.RetryInterval,
		connectTimeout: cfg.ConnectTimeout,
		transport:      deps.Transport,
		buffer:         deps.Buffer,
		codecs:         deps.Codecs,
		observer:       deps.Observer,
		metrics:        deps.Metrics,
		logger:         log,
		auth:           deps.Authenticator,
		inbound:        make(chan inboundMessage, cfg.InboundQueue),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

// Identity returns the identity this node owns.
func (n *Node) Identity() string {
	return n.identity
}

// State returns the current connection state.
func (n *Node) State() NodeState {
	return NodeState(n.state.Load())
}

// Done is closed once Shutdown has been called and both background loops exited.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Connect establishes the broker session. The inbox topic is subscribed from
// the transport's on-connect hook, so it is restored after every reconnect.
// Failures are returned as *comm.ConnectionError.
func (n *Node) Connect(ctx context.Context) error {
	n.mu.Lock()
	stopped := n.stopped
	n.mu.Unlock()
	if stopped {
		return n.connectionError(errors.New("node is shut down"))
	}

	if !n.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.connectTimeout)
	defer cancel()

	if n.auth != nil {
		if _, err := n.auth.AccessToken(ctx); err != nil {
			n.state.Store(int32(StateDisconnected))
			return n.connectionError(err)
		}
	}

	hooks := comm.TransportHooks{
		OnConnect:        n.handleConnect,
		OnMessage:        n.enqueueInbound,
		OnConnectionLost: n.handleConnectionLost,
	}
	if err := n.transport.Connect(ctx, hooks); err != nil {
		n.state.Store(int32(StateDisconnected))
		return n.connectionError(err)
	}

	n.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected))
	n.logger.Infow("node connected", "broker", n.transport.Broker())
	return nil
}

func (n *Node) connectionError(err error) error {
	return &comm.ConnectionError{
		Identity: n.identity,
		Broker:   n.transport.Broker(),
		Err:      err,
	}
}

func (n *Node) handleConnect() {
	n.state.Store(int32(StateConnected))

	topic := comm.InboxTopic(n.identity)
	if err := n.transport.Subscribe(topic); err != nil {
		n.logger.Warnw("failed to subscribe inbox", "topic", topic, "error", err)
		return
	}
	n.state.Store(int32(StateSubscribed))
	n.logger.Infow("subscribed to inbox", "topic", topic)
}

func (n *Node) handleConnectionLost(err error) {
	n.state.Store(int32(StateDisconnected))
	if n.auth != nil {
		n.auth.ExpireAccess()
	}
	n.logger.Warnw("broker connection lost", "error", err)
}

func (n *Node) enqueueInbound(topic string, payload []byte) {
	msg := inboundMessage{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case n.inbound <- msg:
	case <-n.stopCh:
	}
}

// Start launches the receive loop and the retry loop. Calling Start again, or
// after Shutdown, is a no-op.
func (n *Node) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started || n.stopped {
		return
	}
	n.started = true

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	n.wg.Add(2)
	goroutine.SafeGo(n.logger, "node-receive-"+n.identity, func() {
		defer n.wg.Done()
		n.receiveLoop(ctx)
	})
	goroutine.SafeGo(n.logger, "node-retry-"+n.identity, func() {
		defer n.wg.Done()
		n.retryLoop(ctx)
	})

	n.logger.Infow("node started", "retry_interval", n.retryInterval)
}

// Shutdown stops both loops and disconnects the transport. It is safe to call
// before Start, after a failed Connect, and more than once.
func (n *Node) Shutdown() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	if n.cancel != nil {
		n.cancel()
	}
	close(n.stopCh)
	n.mu.Unlock()

	goroutine.Guard(n.logger, "node-disconnect-"+n.identity, n.transport.Disconnect)
	n.state.Store(int32(StateDisconnected))

	go func() {
		n.wg.Wait()
		close(n.done)
	}()

	n.logger.Infow("node shut down")
}

func (n *Node) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.inbound:
			n.OnMessage(ctx, msg.payload)
		}
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("node(%s, %s)", n.identity, n.State())
}
