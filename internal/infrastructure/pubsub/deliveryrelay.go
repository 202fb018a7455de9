// Package pubsub relays node deliveries between server instances over Redis Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/goroutine"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

const deliveryChannel = "omnisys:comm:deliveries"

// DeliveryEvent is the wire form of a relayed delivery.
type DeliveryEvent struct {
	InstanceID string        `json:"instance_id"`
	Identity   string        `json:"identity"`
	Envelope   comm.Envelope `json:"envelope"`
	Codec      string        `json:"codec"`
	Raw        bool          `json:"raw"`
	Decoded    []byte        `json:"decoded"`
	ReceivedAt time.Time     `json:"received_at"`
}

func (e DeliveryEvent) delivery() comm.Delivery {
	return comm.Delivery{
		Identity:   e.Identity,
		Envelope:   e.Envelope,
		Codec:      e.Codec,
		Raw:        e.Raw,
		Decoded:    e.Decoded,
		ReceivedAt: e.ReceivedAt,
	}
}

// RedisDeliveryRelay publishes local deliveries and replays deliveries from
// other instances, so a stream subscriber on any instance sees messages for
// nodes hosted elsewhere. It implements comm.Observer for the publishing side.
type RedisDeliveryRelay struct {
	client     *redis.Client
	logger     logger.Interface
	instanceID string
}

func NewRedisDeliveryRelay(client *redis.Client, logger logger.Interface) *RedisDeliveryRelay {
	return &RedisDeliveryRelay{
		client:     client,
		logger:     logger,
		instanceID: uuid.NewString(),
	}
}

// Observe publishes d for the other instances. Failures are logged only.
func (r *RedisDeliveryRelay) Observe(ctx context.Context, d comm.Delivery) {
	data, err := json.Marshal(DeliveryEvent{
		InstanceID: r.instanceID,
		Identity:   d.Identity,
		Envelope:   d.Envelope,
		Codec:      d.Codec,
		Raw:        d.Raw,
		Decoded:    d.Decoded,
		ReceivedAt: d.ReceivedAt,
	})
	if err != nil {
		r.logger.Errorw("failed to marshal delivery event", "identity", d.Identity, "error", err)
		return
	}

	if err := r.client.Publish(context.WithoutCancel(ctx), deliveryChannel, data).Err(); err != nil {
		r.logger.Warnw("failed to relay delivery", "identity", d.Identity, "error", err)
	}
}

// Subscribe feeds deliveries published by other instances to observer until
// ctx is done, resubscribing with backoff when the connection drops.
func (r *RedisDeliveryRelay) Subscribe(ctx context.Context, observer comm.Observer) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		err := r.subscribe(ctx, observer)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.logger.Warnw("delivery relay disconnected, reconnecting",
			"channel", deliveryChannel,
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

func (r *RedisDeliveryRelay) subscribe(ctx context.Context, observer comm.Observer) error {
	pubsub := r.client.Subscribe(ctx, deliveryChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to channel %s: %w", deliveryChannel, err)
	}

	r.logger.Infow("subscribed to delivery relay", "channel", deliveryChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				r.logger.Warnw("delivery relay channel closed", "channel", deliveryChannel)
				return nil
			}
			r.handle(ctx, msg.Payload, observer)
		}
	}
}

func (r *RedisDeliveryRelay) handle(ctx context.Context, payload string, observer comm.Observer) {
	var event DeliveryEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		r.logger.Warnw("failed to unmarshal delivery event", "error", err)
		return
	}

	// Local deliveries already reached the local observers.
	if event.InstanceID == r.instanceID {
		return
	}

	goroutine.Guard(r.logger, "delivery-relay-observer", func() {
		observer.Observe(ctx, event.delivery())
	})
}
