package comm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
)

// SendStatus is the outcome of a send.
type SendStatus int

const (
	// StatusPublished means the broker acknowledged the envelope.
	StatusPublished SendStatus = iota
	// StatusBuffered means the publish failed and the envelope was queued for retry.
	StatusBuffered
	// StatusDropped means the publish failed and the buffer was unreachable too.
	StatusDropped
)

func (s SendStatus) String() string {
	switch s {
	case StatusPublished:
		return "published"
	case StatusBuffered:
		return "buffered"
	case StatusDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

func (s SendStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ValidateIdentity rejects identities that cannot be used as a topic segment
// or a buffer key segment.
func ValidateIdentity(identity string) error {
	if strings.TrimSpace(identity) == "" || strings.ContainsAny(identity, ":/+#*? \t\r\n") {
		return comm.ErrInvalidIdentity
	}
	return nil
}

// SendMessage builds an envelope from this node to destination and publishes
// it on the destination's inbox topic. A failed publish never reaches the
// caller as an error: the envelope goes to the outbound buffer instead and the
// returned status says so. Errors are returned only for unusable input.
func (n *Node) SendMessage(ctx context.Context, destination, protocol, msgType string, payload any) (SendStatus, error) {
	if err := ValidateIdentity(destination); err != nil {
		return StatusDropped, err
	}

	env, err := comm.NewEnvelope(n.identity, destination, protocol, msgType, payload)
	if err != nil {
		return StatusDropped, err
	}
	data, err := env.Marshal()
	if err != nil {
		return StatusDropped, err
	}

	return n.deliver(ctx, destination, data), nil
}

// SendEncoded encodes raw with the codec registered for protocol and sends the
// result as a text payload. Unknown protocols send raw as text unchanged.
func (n *Node) SendEncoded(ctx context.Context, destination, protocol, msgType string, raw []byte) (SendStatus, error) {
	codec, _ := n.codecs.Resolve(protocol)
	text, err := codec.Encode(raw)
	if err != nil {
		return StatusDropped, err
	}
	return n.SendMessage(ctx, destination, protocol, msgType, text)
}

func (n *Node) deliver(ctx context.Context, destination string, data []byte) SendStatus {
	err := n.publish(ctx, destination, data)
	if err == nil {
		n.metrics.Published(n.identity)
		n.logger.Debugw("message published", "destination", destination, "bytes", len(data))
		return StatusPublished
	}

	n.logger.Warnw("publish failed, buffering message",
		"destination", destination,
		"error", err,
	)

	if !n.bufferPush(ctx, destination, data) {
		return StatusDropped
	}
	return StatusBuffered
}

func (n *Node) publish(ctx context.Context, destination string, data []byte) error {
	if !n.transport.IsConnected() {
		return comm.ErrNotConnected
	}
	return n.transport.Publish(ctx, comm.InboxTopic(destination), data)
}

// bufferPush detaches from ctx so a cancelled caller still gets its envelope buffered.
func (n *Node) bufferPush(ctx context.Context, destination string, data []byte) bool {
	err := n.buffer.Push(context.WithoutCancel(ctx), n.identity, destination, data)
	if err != nil {
		n.metrics.Dropped(n.identity)
		if n.bufferDown.CompareAndSwap(false, true) {
			n.logger.Errorw("outbound buffer unavailable, message lost",
				"destination", destination,
				"error", err,
			)
		} else {
			n.logger.Debugw("outbound buffer still unavailable, message lost",
				"destination", destination,
			)
		}
		return false
	}

	if n.bufferDown.Swap(false) {
		n.logger.Infow("outbound buffer reachable again")
	}
	n.metrics.Buffered(n.identity)
	return true
}

// RetryBuffered drains this node's outbound buffer once and returns how many
// envelopes were delivered. Each destination is drained until it is empty or a
// publish fails; the failed entry is pushed back to the head of its queue and
// that destination is left for the next cycle. Only one drain runs at a time;
// an overlapping call returns immediately.
func (n *Node) RetryBuffered(ctx context.Context) (int, error) {
	if !n.drainMu.TryLock() {
		return 0, nil
	}
	defer n.drainMu.Unlock()

	destinations, err := n.buffer.Destinations(ctx, n.identity)
	if err != nil {
		n.logger.Errorw("failed to list buffered destinations", "error", err)
		return 0, errors.Join(comm.ErrBufferUnavailable, err)
	}

	delivered := 0
	for _, destination := range destinations {
		if ctx.Err() != nil {
			break
		}
		count, err := n.drainDestination(ctx, destination)
		delivered += count
		if err != nil {
			n.logger.Errorw("failed to drain buffered destination",
				"destination", destination,
				"error", err,
			)
		}
	}

	if delivered > 0 {
		n.logger.Infow("buffered messages delivered", "count", delivered)
	}
	return delivered, nil
}

func (n *Node) drainDestination(ctx context.Context, destination string) (int, error) {
	delivered := 0
	for ctx.Err() == nil {
		data, ok, err := n.buffer.Pop(ctx, n.identity, destination)
		if err != nil {
			return delivered, err
		}
		if !ok {
			return delivered, nil
		}

		if err := n.publish(ctx, destination, data); err != nil {
			n.logger.Debugw("retry publish failed, keeping message buffered",
				"destination", destination,
				"error", err,
			)
			if err := n.buffer.Push(context.WithoutCancel(ctx), n.identity, destination, data); err != nil {
				n.metrics.Dropped(n.identity)
				return delivered, err
			}
			return delivered, nil
		}

		delivered++
		n.metrics.Retried(n.identity)
	}
	return delivered, nil
}

func (n *Node) retryLoop(ctx context.Context) {
	ticker := time.NewTicker(n.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = n.RetryBuffered(ctx)
		}
	}
}
