package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

const inboxKeyPrefix = "inbox:"

// RedisInboxStore keeps the most recent deliveries per identity in a capped
// Redis list, newest first. It doubles as a comm.Observer so nodes can feed it
// directly.
type RedisInboxStore struct {
	client    *redis.Client
	logger    logger.Interface
	limit     int64
	retention time.Duration
}

// NewRedisInboxStore creates a new RedisInboxStore holding at most limit
// entries per identity; each append extends the list's TTL to retention.
func NewRedisInboxStore(client *redis.Client, limit int64, retention time.Duration, log logger.Interface) *RedisInboxStore {
	if limit <= 0 {
		limit = 100
	}
	return &RedisInboxStore{
		client:    client,
		logger:    log,
		limit:     limit,
		retention: retention,
	}
}

func (s *RedisInboxStore) key(identity string) string {
	return inboxKeyPrefix + identity
}

// Append stores entry at the head of identity's inbox and trims the tail.
func (s *RedisInboxStore) Append(ctx context.Context, identity string, entry comm.InboxEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal inbox entry: %w", err)
	}

	key := s.key(identity)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, s.limit-1)
	if s.retention > 0 {
		pipe.Expire(ctx, key, s.retention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append inbox entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 returns the whole inbox.
func (s *RedisInboxStore) List(ctx context.Context, identity string, limit int64) ([]comm.InboxEntry, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	raw, err := s.client.LRange(ctx, s.key(identity), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	entries := make([]comm.InboxEntry, 0, len(raw))
	for _, item := range raw {
		var entry comm.InboxEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			s.logger.Warnw("skipping corrupt inbox entry", "identity", identity, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Observe stores d in the inbox of the node that received it.
func (s *RedisInboxStore) Observe(ctx context.Context, d comm.Delivery) {
	if err := s.Append(ctx, d.Identity, comm.NewInboxEntry(d)); err != nil {
		s.logger.Errorw("failed to store inbound message", "identity", d.Identity, "error", err)
	}
}
