package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

var _ comm.Observer = (*DeliveryHub)(nil)

func testDelivery(identity, text string) comm.Delivery {
	return comm.Delivery{
		Identity: identity,
		Envelope: comm.Envelope{Source: "bob", Destination: identity, Protocol: "HL7", Type: "ADT"},
		Codec:    "HL7",
		Decoded:  []byte(text),
	}
}

func TestDeliveryHub_ObserveRoutesByIdentity(t *testing.T) {
	hub := NewDeliveryHub(logger.NewNopLogger(), nil)
	defer hub.Shutdown()

	alice := hub.Register("c1", "alice")
	carol := hub.Register("c2", "carol")
	require.NotNil(t, alice)
	require.NotNil(t, carol)

	hub.Observe(context.Background(), testDelivery("alice", "MSH|hello"))

	select {
	case data := <-alice.Send:
		s := string(data)
		assert.True(t, strings.HasPrefix(s, "event: message\ndata: "))
		assert.Contains(t, s, `"payload":"MSH|hello"`)
		assert.True(t, strings.HasSuffix(s, "\n\n"))
	default:
		t.Fatal("expected an event for alice")
	}

	assert.Empty(t, carol.Send)
}

func TestDeliveryHub_ConnectionLimit(t *testing.T) {
	hub := NewDeliveryHub(logger.NewNopLogger(), &DeliveryHubConfig{MaxConnsPerIdentity: 2})
	defer hub.Shutdown()

	require.NotNil(t, hub.Register("c1", "alice"))
	require.NotNil(t, hub.Register("c2", "alice"))
	assert.Nil(t, hub.Register("c3", "alice"))
	assert.NotNil(t, hub.Register("c4", "bob"))

	hub.Unregister("alice", "c1")
	assert.Equal(t, 1, hub.ConnCount("alice"))
	assert.NotNil(t, hub.Register("c5", "alice"))
}

func TestDeliveryHub_FullQueueDropsEvent(t *testing.T) {
	hub := NewDeliveryHub(logger.NewNopLogger(), nil)
	defer hub.Shutdown()

	conn := hub.Register("c1", "alice")
	require.NotNil(t, conn)

	for i := 0; i < defaultSendBuffer+10; i++ {
		hub.Observe(context.Background(), testDelivery("alice", fmt.Sprintf("msg-%d", i)))
	}
	assert.Len(t, conn.Send, defaultSendBuffer)
}

func TestDeliveryHub_ShutdownClosesConnections(t *testing.T) {
	hub := NewDeliveryHub(logger.NewNopLogger(), nil)
	conn := hub.Register("c1", "alice")
	require.NotNil(t, conn)

	hub.Shutdown()
	hub.Shutdown()

	_, open := <-conn.Send
	assert.False(t, open)
	assert.False(t, conn.TrySend([]byte("x")))
	assert.Nil(t, hub.Register("c2", "alice"))
}
