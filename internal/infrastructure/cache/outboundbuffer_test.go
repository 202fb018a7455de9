package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOutboundBuffer_PushPopIsLIFO(t *testing.T) {
	mr, client := setupTestRedis(t)
	buf := NewRedisOutboundBuffer(client, newNopLogger())
	ctx := context.Background()

	for _, msg := range []string{"m1", "m2", "m3"} {
		require.NoError(t, buf.Push(ctx, "alice", "bob", []byte(msg)))
	}

	n, err := buf.Len(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var popped []string
	for {
		data, ok, err := buf.Pop(ctx, "alice", "bob")
		require.NoError(t, err)
		if !ok {
			break
		}
		popped = append(popped, string(data))
	}

	assert.Equal(t, []string{"m3", "m2", "m1"}, popped)
	assert.False(t, mr.Exists("buffer:alice:bob"), "emptied queue must not leave a key behind")

	dests, err := buf.Destinations(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, dests)
}

func TestRedisOutboundBuffer_PopEmpty(t *testing.T) {
	_, client := setupTestRedis(t)
	buf := NewRedisOutboundBuffer(client, newNopLogger())

	data, ok, err := buf.Pop(context.Background(), "alice", "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestRedisOutboundBuffer_Destinations(t *testing.T) {
	_, client := setupTestRedis(t)
	buf := NewRedisOutboundBuffer(client, newNopLogger())
	ctx := context.Background()

	require.NoError(t, buf.Push(ctx, "alice", "carol", []byte("x")))
	require.NoError(t, buf.Push(ctx, "alice", "bob", []byte("x")))
	require.NoError(t, buf.Push(ctx, "alice", "bob", []byte("y")))
	require.NoError(t, buf.Push(ctx, "alice2", "dave", []byte("x")))
	require.NoError(t, buf.Push(ctx, "bob", "alice", []byte("x")))

	// Matches buffer:alice:* but has an extra segment.
	require.NoError(t, client.LPush(ctx, "buffer:alice:bob:extra", "junk").Err())

	dests, err := buf.Destinations(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, dests)
}

func TestRedisOutboundBuffer_StoreDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	buf := NewRedisOutboundBuffer(client, newNopLogger())
	ctx := context.Background()

	mr.SetError("ERR store unavailable")

	assert.Error(t, buf.Push(ctx, "alice", "bob", []byte("x")))

	_, _, err := buf.Pop(ctx, "alice", "bob")
	assert.Error(t, err)

	_, err = buf.Destinations(ctx, "alice")
	assert.Error(t, err)
}

func TestMemoryOutboundBuffer(t *testing.T) {
	buf := NewMemoryOutboundBuffer()
	ctx := context.Background()

	require.NoError(t, buf.Push(ctx, "alice", "bob", []byte("m1")))
	require.NoError(t, buf.Push(ctx, "alice", "bob", []byte("m2")))
	require.NoError(t, buf.Push(ctx, "alice", "carol", []byte("m3")))

	dests, err := buf.Destinations(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, dests)

	data, ok, err := buf.Pop(ctx, "alice", "bob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "m2", string(data))

	data, ok, _ = buf.Pop(ctx, "alice", "bob")
	require.True(t, ok)
	assert.Equal(t, "m1", string(data))

	_, ok, _ = buf.Pop(ctx, "alice", "bob")
	assert.False(t, ok)

	dests, _ = buf.Destinations(ctx, "alice")
	assert.Equal(t, []string{"carol"}, dests)

	n, _ := buf.Len(ctx, "alice", "carol")
	assert.Equal(t, int64(1), n)
}
