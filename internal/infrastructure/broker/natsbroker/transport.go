// Package natsbroker implements the broker transport on a NATS connection.
package natsbroker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/config"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

const reconnectWait = 2 * time.Second

// Transport is one NATS connection named after the node identity. NATS keeps
// subscriptions across reconnects itself, so Subscribe is idempotent per subject.
type Transport struct {
	identity    string
	url         string
	cfg         config.BrokerConfig
	credentials comm.CredentialsFunc
	logger      logger.Interface

	mu    sync.Mutex
	conn  *nats.Conn
	hooks comm.TransportHooks
	subs  map[string]*nats.Subscription
}

// NewFactory returns a TransportFactory that builds NATS sessions against cfg.
func NewFactory(cfg config.BrokerConfig, log logger.Interface) comm.TransportFactory {
	return func(identity string, credentials comm.CredentialsFunc) comm.Transport {
		return NewTransport(identity, cfg, credentials, log)
	}
}

func NewTransport(identity string, cfg config.BrokerConfig, credentials comm.CredentialsFunc, log logger.Interface) *Transport {
	return &Transport{
		identity:    identity,
		url:         "nats://" + cfg.GetAddr(),
		cfg:         cfg,
		credentials: credentials,
		logger:      log.With("identity", identity, "broker", "nats"),
		subs:        make(map[string]*nats.Subscription),
	}
}

func (t *Transport) Broker() string {
	return t.url
}

func (t *Transport) connectionOptions(hooks comm.TransportHooks) []nats.Option {
	opts := []nats.Option{
		nats.Name(t.identity),
		nats.Timeout(t.cfg.ConnectTimeout),
		nats.PingInterval(t.cfg.KeepAlive),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if hooks.OnConnectionLost != nil {
				hooks.OnConnectionLost(err)
			}
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			t.logger.Infow("reconnected to broker")
			if hooks.OnConnect != nil {
				hooks.OnConnect()
			}
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			t.logger.Debugw("broker connection closed")
		}),
	}

	// The token handler runs on every (re)connect.
	if t.credentials != nil {
		opts = append(opts, nats.TokenHandler(t.provideToken))
	}
	return opts
}

func (t *Transport) provideToken() string {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.ConnectTimeout)
	defer cancel()

	_, token, err := t.credentials(ctx)
	if err != nil {
		t.logger.Errorw("failed to obtain broker credentials", "error", err)
		return ""
	}
	return token
}

// Connect dials the server, giving up when ctx is done.
func (t *Transport) Connect(ctx context.Context, hooks comm.TransportHooks) error {
	t.mu.Lock()
	t.hooks = hooks
	t.mu.Unlock()

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(t.url, t.connectionOptions(hooks)...)
		done <- result{conn: conn, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		go func() {
			if late := <-done; late.conn != nil {
				late.conn.Close()
			}
		}()
		return fmt.Errorf("failed to connect to %s: %w", t.url, ctx.Err())
	}
	if res.err != nil {
		return fmt.Errorf("failed to connect to %s: %w", t.url, res.err)
	}

	t.mu.Lock()
	t.conn = res.conn
	t.mu.Unlock()

	if hooks.OnConnect != nil {
		hooks.OnConnect()
	}
	return nil
}

func (t *Transport) Subscribe(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil || !t.conn.IsConnected() {
		return comm.ErrNotConnected
	}
	if sub, ok := t.subs[topic]; ok && sub.IsValid() {
		return nil
	}

	hooks := t.hooks
	sub, err := t.conn.Subscribe(topic, func(msg *nats.Msg) {
		if hooks.OnMessage != nil {
			hooks.OnMessage(msg.Subject, msg.Data)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", topic, err)
	}
	t.subs[topic] = sub
	return nil
}

// Publish sends payload and flushes, so success means the server has it.
func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	conn := t.current()
	if conn == nil || !conn.IsConnected() {
		return comm.ErrNotConnected
	}

	if err := conn.Publish(topic, payload); err != nil {
		return fmt.Errorf("publish to %s: %w: %v", topic, comm.ErrPublishRejected, err)
	}

	timeout := t.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w: %v", topic, comm.ErrPublishTimeout, err)
	}
	return nil
}

func (t *Transport) Disconnect() {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.subs = make(map[string]*nats.Subscription)
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (t *Transport) IsConnected() bool {
	conn := t.current()
	return conn != nil && conn.IsConnected()
}

func (t *Transport) current() *nats.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}
