package comm

import (
	"context"
	"time"
	"unicode/utf8"
)

// TransportHooks are invoked by a Transport from its own goroutines.
type TransportHooks struct {
	// OnConnect runs after every successful (re)connect.
	OnConnect func()
	// OnMessage receives every inbound message in delivery order.
	OnMessage func(topic string, payload []byte)
	// OnConnectionLost runs when an established session drops.
	OnConnectionLost func(err error)
}

// Transport is one broker session.
type Transport interface {
	// Connect blocks until the handshake completes, fails, or ctx is done.
	Connect(ctx context.Context, hooks TransportHooks) error
	Subscribe(topic string) error
	// Publish hands payload to the broker with at-least-once semantics and
	// returns once the transport reports a result.
	Publish(ctx context.Context, topic string, payload []byte) error
	Disconnect()
	IsConnected() bool
	// Broker describes the remote endpoint for logs.
	Broker() string
}

// CredentialsFunc supplies broker credentials at (re)connect time.
// Returning empty strings means anonymous.
type CredentialsFunc func(ctx context.Context) (username, password string, err error)

// TransportFactory builds the session for one identity.
type TransportFactory func(identity string, credentials CredentialsFunc) Transport

// OutboundBuffer is the durable per-(identity, destination) queue of
// undeliverable envelopes. Push and Pop operate on the same end of the queue,
// so the most recently pushed entry is popped first. Each operation must be
// atomic on its own; an emptied queue must disappear from Destinations.
type OutboundBuffer interface {
	Push(ctx context.Context, identity, destination string, data []byte) error
	Pop(ctx context.Context, identity, destination string) (data []byte, ok bool, err error)
	Destinations(ctx context.Context, identity string) ([]string, error)
	Len(ctx context.Context, identity, destination string) (int64, error)
}

// Delivery is one inbound envelope after codec resolution.
type Delivery struct {
	Identity   string    `json:"identity"`
	Envelope   Envelope  `json:"envelope"`
	Codec      string    `json:"codec"`
	Raw        bool      `json:"raw"`
	Decoded    []byte    `json:"-"`
	ReceivedAt time.Time `json:"received_at"`
}

// DecodedText returns the decoded payload as text.
func (d Delivery) DecodedText() string {
	return string(d.Decoded)
}

// Observer receives deliveries. Implementations must not block for long; they
// run on the node's receive loop.
type Observer interface {
	Observe(ctx context.Context, d Delivery)
}

// IdentityDirectory is the authoritative list of identities held by the CRUD store.
type IdentityDirectory interface {
	IsActive(ctx context.Context, identity string) (bool, error)
	ListActive(ctx context.Context) ([]string, error)
}

// TokenPair is a short-lived access credential plus its refresh credential.
type TokenPair struct {
	Access    string    `json:"access"`
	Refresh   string    `json:"refresh"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CredentialIssuer exchanges username/password or a refresh credential for a
// fresh TokenPair. Rejections wrap ErrCredentials.
type CredentialIssuer interface {
	Login(ctx context.Context, username, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// Metrics records node activity. Use NopMetrics when no collector is wired.
type Metrics interface {
	Published(identity string)
	Buffered(identity string)
	Retried(identity string)
	Dropped(identity string)
	DecodeFailed(identity string)
	LiveNodes(n int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) Published(string)    {}
func (NopMetrics) Buffered(string)     {}
func (NopMetrics) Retried(string)      {}
func (NopMetrics) Dropped(string)      {}
func (NopMetrics) DecodeFailed(string) {}
func (NopMetrics) LiveNodes(int)       {}

// InboxEntry is a stored delivery as exposed to clients.
type InboxEntry struct {
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Protocol    string    `json:"protocol"`
	Type        string    `json:"type"`
	Timestamp   string    `json:"timestamp"`
	Codec       string    `json:"codec"`
	Raw         bool      `json:"raw"`
	Payload     string    `json:"payload"`
	ReceivedAt  time.Time `json:"received_at"`
}

// NewInboxEntry flattens d. Binary decoded payloads are kept in their wire
// (encoded) form so the entry stays valid JSON text.
func NewInboxEntry(d Delivery) InboxEntry {
	payload := d.DecodedText()
	if !utf8.Valid(d.Decoded) {
		payload = d.Envelope.CodecInput()
	}
	return InboxEntry{
		Source:      d.Envelope.Source,
		Destination: d.Envelope.Destination,
		Protocol:    d.Envelope.Protocol,
		Type:        d.Envelope.Type,
		Timestamp:   d.Envelope.Timestamp,
		Codec:       d.Codec,
		Raw:         d.Raw,
		Payload:     payload,
		ReceivedAt:  d.ReceivedAt,
	}
}

// Inbox keeps recent deliveries per identity, newest first.
type Inbox interface {
	Append(ctx context.Context, identity string, entry InboxEntry) error
	List(ctx context.Context, identity string, limit int64) ([]InboxEntry, error)
}
