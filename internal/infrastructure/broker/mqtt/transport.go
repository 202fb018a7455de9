// Package mqtt implements the broker transport on an MQTT 3.1.1 session.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/config"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

const disconnectQuiesceMillis = 250

var errTimeout = errors.New("timed out waiting for broker")

// Transport is one MQTT session whose client ID is the node identity, so the
// broker evicts any older session for the same identity.
type Transport struct {
	identity    string
	broker      string
	cfg         config.BrokerConfig
	credentials comm.CredentialsFunc
	logger      logger.Interface

	mu     sync.RWMutex
	client paho.Client
}

// NewFactory returns a TransportFactory that builds MQTT sessions against cfg.
func NewFactory(cfg config.BrokerConfig, log logger.Interface) comm.TransportFactory {
	return func(identity string, credentials comm.CredentialsFunc) comm.Transport {
		return NewTransport(identity, cfg, credentials, log)
	}
}

// NewTransport creates a disconnected transport. credentials may be nil for
// an anonymous session.
func NewTransport(identity string, cfg config.BrokerConfig, credentials comm.CredentialsFunc, log logger.Interface) *Transport {
	return &Transport{
		identity:    identity,
		broker:      "tcp://" + cfg.GetAddr(),
		cfg:         cfg,
		credentials: credentials,
		logger:      log.With("identity", identity, "broker", "mqtt"),
	}
}

func (t *Transport) Broker() string {
	return t.broker
}

func (t *Transport) clientOptions(hooks comm.TransportHooks) *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(t.broker).
		SetClientID(t.identity).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetKeepAlive(t.cfg.KeepAlive).
		SetConnectTimeout(t.cfg.ConnectTimeout).
		SetMaxReconnectInterval(time.Minute)

	if t.credentials != nil {
		opts.SetCredentialsProvider(t.provideCredentials)
	}

	opts.SetOnConnectHandler(func(paho.Client) {
		if hooks.OnConnect != nil {
			hooks.OnConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		if hooks.OnConnectionLost != nil {
			hooks.OnConnectionLost(err)
		}
	})
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		t.logger.Debugw("reconnecting to broker")
	})
	opts.SetDefaultPublishHandler(func(_ paho.Client, msg paho.Message) {
		if hooks.OnMessage != nil {
			hooks.OnMessage(msg.Topic(), msg.Payload())
		}
	})
	return opts
}

// provideCredentials runs on every (re)connect. paho cannot take an error here,
// so a failed lookup sends empty credentials and lets the broker refuse them.
func (t *Transport) provideCredentials() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.ConnectTimeout)
	defer cancel()

	username, password, err := t.credentials(ctx)
	if err != nil {
		t.logger.Errorw("failed to obtain broker credentials", "error", err)
		return "", ""
	}
	return username, password
}

// Connect performs the CONNECT handshake.
func (t *Transport) Connect(ctx context.Context, hooks comm.TransportHooks) error {
	client := paho.NewClient(t.clientOptions(hooks))

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	if err := wait(ctx, client.Connect(), t.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", t.broker, err)
	}
	return nil
}

// Subscribe subscribes to topic with the configured QoS. Messages are routed to
// the OnMessage hook given to Connect.
func (t *Transport) Subscribe(topic string) error {
	client := t.current()
	if client == nil || !client.IsConnectionOpen() {
		return comm.ErrNotConnected
	}
	if err := wait(context.Background(), client.Subscribe(topic, t.cfg.QoS, nil), t.cfg.PublishTimeout); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", topic, err)
	}
	return nil
}

// Publish sends payload with the configured QoS and waits for the broker's
// acknowledgement, bounded by the publish timeout.
func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	client := t.current()
	if client == nil || !client.IsConnectionOpen() {
		return comm.ErrNotConnected
	}
	err := wait(ctx, client.Publish(topic, t.cfg.QoS, false, payload), t.cfg.PublishTimeout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errTimeout):
		return fmt.Errorf("publish to %s: %w", topic, comm.ErrPublishTimeout)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("publish to %s: %w", topic, err)
	default:
		return fmt.Errorf("publish to %s: %w: %v", topic, comm.ErrPublishRejected, err)
	}
	return nil
}

func (t *Transport) Disconnect() {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(disconnectQuiesceMillis)
	}
}

func (t *Transport) IsConnected() bool {
	client := t.current()
	return client != nil && client.IsConnectionOpen()
}

func (t *Transport) current() paho.Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.client
}

// wait blocks on token until it completes, ctx is done or timeout elapses.
func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errTimeout
	}
	return token.Error()
}
