package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/cache"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

var errBrokerDown = errors.New("broker down")

type publishedMessage struct {
	topic   string
	payload []byte
}

// fakeTransport records everything a node does with its session. failPublish
// decides per publish attempt (1-based) whether to fail.
type fakeTransport struct {
	mu            sync.Mutex
	connected     bool
	connectErr    error
	hooks         comm.TransportHooks
	subscriptions []string
	published     []publishedMessage
	attempts      int
	failPublish   func(attempt int) error
	disconnects   int
	credentials   comm.CredentialsFunc
}

func (f *fakeTransport) Connect(ctx context.Context, hooks comm.TransportHooks) error {
	f.mu.Lock()
	if f.connectErr != nil {
		f.mu.Unlock()
		return f.connectErr
	}
	if f.credentials != nil {
		if _, _, err := f.credentials(ctx); err != nil {
			f.mu.Unlock()
			return err
		}
	}
	f.hooks = hooks
	f.connected = true
	f.mu.Unlock()

	if hooks.OnConnect != nil {
		hooks.OnConnect()
	}
	return nil
}

func (f *fakeTransport) Subscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions = append(f.subscriptions, topic)
	return nil
}

func (f *fakeTransport) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failPublish != nil {
		if err := f.failPublish(f.attempts); err != nil {
			return err
		}
	}
	f.published = append(f.published, publishedMessage{topic: topic, payload: append([]byte(nil), payload...)})
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Broker() string { return "fake://broker" }

func (f *fakeTransport) setFailPublish(fn func(attempt int) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPublish = fn
	f.attempts = 0
}

func (f *fakeTransport) publishedPayloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.published))
	for _, p := range f.published {
		env, err := comm.ParseEnvelope(p.payload)
		if err != nil {
			out = append(out, string(p.payload))
			continue
		}
		text, _ := env.PayloadText()
		out = append(out, text)
	}
	return out
}

func (f *fakeTransport) subscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscriptions...)
}

func (f *fakeTransport) deliver(payload []byte) {
	f.mu.Lock()
	hooks := f.hooks
	f.mu.Unlock()
	hooks.OnMessage("comm/test", payload)
}

func alwaysFail(int) error { return errBrokerDown }

// failingBuffer is an outbound buffer whose store is unreachable.
type failingBuffer struct{}

func (failingBuffer) Push(context.Context, string, string, []byte) error {
	return errors.New("redis: connection refused")
}
func (failingBuffer) Pop(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, errors.New("redis: connection refused")
}
func (failingBuffer) Destinations(context.Context, string) ([]string, error) {
	return nil, errors.New("redis: connection refused")
}
func (failingBuffer) Len(context.Context, string, string) (int64, error) {
	return 0, errors.New("redis: connection refused")
}

type logEntry struct {
	level string
	msg   string
}

// recordingLogger captures entries from itself and every derived logger.
type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range *l.entries {
		if e.level == level && (msg == "" || e.msg == msg) {
			n++
		}
	}
	return n
}

func (l *recordingLogger) With(_ ...any) logger.Interface      { return l }
func (l *recordingLogger) Named(_ string) logger.Interface     { return l }
func (l *recordingLogger) Debugw(msg string, _ ...interface{}) { l.record("debug", msg) }
func (l *recordingLogger) Infow(msg string, _ ...interface{})  { l.record("info", msg) }
func (l *recordingLogger) Warnw(msg string, _ ...interface{})  { l.record("warn", msg) }
func (l *recordingLogger) Errorw(msg string, _ ...interface{}) { l.record("error", msg) }

// deliveryRecorder is an observer that forwards deliveries to a channel.
type deliveryRecorder struct {
	ch chan comm.Delivery
}

func newDeliveryRecorder() *deliveryRecorder {
	return &deliveryRecorder{ch: make(chan comm.Delivery, 16)}
}

func (r *deliveryRecorder) Observe(_ context.Context, d comm.Delivery) {
	r.ch <- d
}

func (r *deliveryRecorder) next(t *testing.T) comm.Delivery {
	t.Helper()
	select {
	case d := <-r.ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return comm.Delivery{}
	}
}

type testNode struct {
	node      *Node
	transport *fakeTransport
	buffer    comm.OutboundBuffer
	observer  *deliveryRecorder
	logger    *recordingLogger
}

func newTestNode(t *testing.T, identity string) *testNode {
	t.Helper()
	return newTestNodeWithBuffer(t, identity, cache.NewMemoryOutboundBuffer())
}

func newTestNodeWithBuffer(t *testing.T, identity string, buffer comm.OutboundBuffer) *testNode {
	t.Helper()

	tn := &testNode{
		transport: &fakeTransport{},
		buffer:    buffer,
		observer:  newDeliveryRecorder(),
		logger:    newRecordingLogger(),
	}
	node, err := NewNode(NodeConfig{
		Identity:      identity,
		RetryInterval: time.Hour,
	}, NodeDeps{
		Transport: tn.transport,
		Buffer:    buffer,
		Observer:  tn.observer,
		Logger:    tn.logger,
	})
	require.NoError(t, err)
	tn.node = node
	t.Cleanup(node.Shutdown)
	return tn
}

// fakeFactory counts transports built per identity. Identities listed in
// unreachable get a transport whose Connect fails.
type fakeFactory struct {
	mu          sync.Mutex
	transports  map[string][]*fakeTransport
	unreachable map[string]bool
	builds      atomic.Int32
	delay       time.Duration
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		transports:  make(map[string][]*fakeTransport),
		unreachable: make(map[string]bool),
	}
}

func (f *fakeFactory) New(identity string, credentials comm.CredentialsFunc) comm.Transport {
	f.builds.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	tr := &fakeTransport{credentials: credentials}
	if f.unreachable[identity] {
		tr.connectErr = fmt.Errorf("dial %s: %w", identity, errBrokerDown)
	}
	f.transports[identity] = append(f.transports[identity], tr)
	return tr
}

func (f *fakeFactory) last(identity string) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.transports[identity]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// fakeDirectory is a mutable identity directory.
type fakeDirectory struct {
	mu     sync.Mutex
	active map[string]bool
	err    error
}

func newFakeDirectory(ids ...string) *fakeDirectory {
	d := &fakeDirectory{active: make(map[string]bool)}
	for _, id := range ids {
		d.active[id] = true
	}
	return d
}

func (d *fakeDirectory) IsActive(_ context.Context, identity string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active[identity], d.err
}

func (d *fakeDirectory) ListActive(_ context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	ids := make([]string, 0, len(d.active))
	for id, ok := range d.active {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (d *fakeDirectory) retire(identity string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.active, identity)
}

func newMemoryBuffer() *cache.MemoryOutboundBuffer {
	return cache.NewMemoryOutboundBuffer()
}
