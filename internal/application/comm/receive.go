package comm

import (
	"context"
	"errors"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/biztime"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/goroutine"
)

// OnMessage parses one inbound payload and hands it to HandleMessage.
// Malformed payloads are logged and dropped.
func (n *Node) OnMessage(ctx context.Context, raw []byte) {
	env, err := comm.ParseEnvelope(raw)
	if err != nil {
		n.metrics.DecodeFailed(n.identity)
		n.logger.Warnw("dropping malformed inbound message",
			"bytes", len(raw),
			"error", err,
		)
		return
	}
	_, _ = n.HandleMessage(ctx, env)
}

// HandleMessage resolves the codec for env's protocol tag, decodes the payload
// and notifies the observer. Unknown tags pass the payload through unchanged.
// A payload the selected codec cannot decode is logged and dropped.
func (n *Node) HandleMessage(ctx context.Context, env comm.Envelope) (comm.Delivery, error) {
	codec, registered := n.codecs.Resolve(env.Protocol)

	var decoded []byte
	if registered {
		var err error
		decoded, err = codec.Decode(env.CodecInput())
		if err != nil {
			n.metrics.DecodeFailed(n.identity)
			n.logger.Warnw("dropping undecodable inbound message",
				"source", env.Source,
				"protocol", env.Protocol,
				"codec", codec.Name(),
				"error", err,
			)
			return comm.Delivery{}, err
		}
	} else {
		decoded = passthrough(env)
	}

	d := comm.Delivery{
		Identity:   n.identity,
		Envelope:   env,
		Codec:      codec.Name(),
		Raw:        !registered,
		Decoded:    decoded,
		ReceivedAt: biztime.NowUTC(),
	}

	if !goroutine.Guard(n.logger, "observer-"+n.identity, func() { n.observer.Observe(ctx, d) }) {
		return d, errors.New("observer panicked")
	}
	return d, nil
}

func passthrough(env comm.Envelope) []byte {
	if text, ok := env.PayloadText(); ok {
		return []byte(text)
	}
	return append([]byte(nil), env.Payload...)
}
