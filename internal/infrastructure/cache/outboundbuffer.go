package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

const scanBatch = 100

// RedisOutboundBuffer stores undeliverable envelopes in Redis lists keyed
// buffer:<identity>:<destination>. Push and Pop both work on the list head.
type RedisOutboundBuffer struct {
	client *redis.Client
	logger logger.Interface
}

// NewRedisOutboundBuffer creates a new RedisOutboundBuffer.
func NewRedisOutboundBuffer(client *redis.Client, log logger.Interface) *RedisOutboundBuffer {
	return &RedisOutboundBuffer{
		client: client,
		logger: log,
	}
}

// Push prepends data to the (identity, destination) queue.
func (b *RedisOutboundBuffer) Push(ctx context.Context, identity, destination string, data []byte) error {
	if err := b.client.LPush(ctx, comm.BufferKey(identity, destination), data).Err(); err != nil {
		return fmt.Errorf("failed to push buffered message: %w", err)
	}
	return nil
}

// Pop removes and returns the head of the queue. Redis deletes a list when its
// last element is popped.
func (b *RedisOutboundBuffer) Pop(ctx context.Context, identity, destination string) ([]byte, bool, error) {
	data, err := b.client.LPop(ctx, comm.BufferKey(identity, destination)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to pop buffered message: %w", err)
	}
	return data, true, nil
}

// Destinations scans for identity's non-empty queues. Keys that match the
// pattern but do not have the buffer key shape are logged and skipped.
func (b *RedisOutboundBuffer) Destinations(ctx context.Context, identity string) ([]string, error) {
	var (
		cursor       uint64
		destinations []string
		seen         = make(map[string]struct{})
	)

	for {
		keys, next, err := b.client.Scan(ctx, cursor, comm.BufferKeyPattern(identity), scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan buffer keys: %w", err)
		}

		for _, key := range keys {
			owner, destination, err := comm.ParseBufferKey(key)
			if err != nil || owner != identity {
				b.logger.Warnw("skipping unexpected buffer key", "key", key, "identity", identity)
				continue
			}
			if _, dup := seen[destination]; dup {
				continue
			}
			seen[destination] = struct{}{}
			destinations = append(destinations, destination)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Strings(destinations)
	return destinations, nil
}

// Len returns the queue length. A missing queue has length zero.
func (b *RedisOutboundBuffer) Len(ctx context.Context, identity, destination string) (int64, error) {
	n, err := b.client.LLen(ctx, comm.BufferKey(identity, destination)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read buffer length: %w", err)
	}
	return n, nil
}
