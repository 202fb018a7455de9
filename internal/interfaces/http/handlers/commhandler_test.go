package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcomm "github.com/alissayuxuan/OMNI-SYS/internal/application/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/cache"
	"github.com/alissayuxuan/OMNI-SYS/internal/interfaces/http/handlers/testutil"
)

// =====================================================================
// Mocks
// =====================================================================

type mockNodeManager struct {
	createFn   func(ctx context.Context, identity string, creds *appcomm.Credentials) (*appcomm.Node, error)
	shutdownFn func(identity string) bool
	identities []string
	sendFn     func(ctx context.Context, identity, destination, protocol, msgType string, payload any) (appcomm.SendStatus, error)
}

func (m *mockNodeManager) CreateNode(ctx context.Context, identity string, creds *appcomm.Credentials) (*appcomm.Node, error) {
	return m.createFn(ctx, identity, creds)
}

func (m *mockNodeManager) ShutdownNode(identity string) bool {
	return m.shutdownFn(identity)
}

func (m *mockNodeManager) Identities() []string {
	return m.identities
}

func (m *mockNodeManager) Send(ctx context.Context, identity, destination, protocol, msgType string, payload any) (appcomm.SendStatus, error) {
	return m.sendFn(ctx, identity, destination, protocol, msgType, payload)
}

type mockInbox struct {
	entries []comm.InboxEntry
	err     error
	limit   int64
}

func (m *mockInbox) Append(context.Context, string, comm.InboxEntry) error { return nil }

func (m *mockInbox) List(_ context.Context, _ string, limit int64) ([]comm.InboxEntry, error) {
	m.limit = limit
	return m.entries, m.err
}

// idleTransport never connects; handlers only read node identity and state.
type idleTransport struct{}

func (idleTransport) Connect(context.Context, comm.TransportHooks) error { return nil }
func (idleTransport) Subscribe(string) error                             { return nil }
func (idleTransport) Publish(context.Context, string, []byte) error      { return comm.ErrNotConnected }
func (idleTransport) Disconnect()                                        {}
func (idleTransport) IsConnected() bool                                  { return false }
func (idleTransport) Broker() string                                     { return "idle://" }

func newIdleNode(t *testing.T, identity string) *appcomm.Node {
	t.Helper()
	node, err := appcomm.NewNode(appcomm.NodeConfig{Identity: identity}, appcomm.NodeDeps{
		Transport: idleTransport{},
		Buffer:    cache.NewMemoryOutboundBuffer(),
		Logger:    testutil.NewMockLogger(),
	})
	require.NoError(t, err)
	return node
}

func newTestCommHandler(nodes nodeManager, inbox comm.Inbox, buffer comm.OutboundBuffer) *CommHandler {
	return NewCommHandler(nodes, inbox, buffer, testutil.NewMockLogger())
}

// =====================================================================
// Node lifecycle
// =====================================================================

func TestCommHandler_ListNodes(t *testing.T) {
	handler := newTestCommHandler(&mockNodeManager{identities: []string{"1", "2"}}, nil, nil)

	c, w := testutil.NewTestContext(http.MethodGet, "/api/comm/nodes", nil)
	handler.ListNodes(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp NodeListResponse
	require.NoError(t, testutil.ParseData(w, &resp))
	assert.Equal(t, []string{"1", "2"}, resp.Identities)
	assert.Equal(t, 2, resp.Count)
}

func TestCommHandler_CreateNode_Success(t *testing.T) {
	var gotCreds *appcomm.Credentials
	nodes := &mockNodeManager{createFn: func(_ context.Context, identity string, creds *appcomm.Credentials) (*appcomm.Node, error) {
		gotCreds = creds
		return newIdleNode(t, identity), nil
	}}
	handler := newTestCommHandler(nodes, nil, nil)

	c, w := testutil.NewTestContext(http.MethodPost, "/api/comm/nodes/7", CreateNodeRequest{Username: "ward", Password: "pw"})
	testutil.SetURLParam(c, "identity", "7")
	handler.CreateNode(c)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp NodeResponse
	require.NoError(t, testutil.ParseData(w, &resp))
	assert.Equal(t, "7", resp.Identity)
	assert.Equal(t, appcomm.StateDisconnected.String(), resp.State)
	require.NotNil(t, gotCreds)
	assert.Equal(t, "ward", gotCreds.Username)
}

func TestCommHandler_CreateNode_WithoutBody(t *testing.T) {
	nodes := &mockNodeManager{createFn: func(_ context.Context, identity string, creds *appcomm.Credentials) (*appcomm.Node, error) {
		assert.Nil(t, creds)
		return newIdleNode(t, identity), nil
	}}
	handler := newTestCommHandler(nodes, nil, nil)

	c, w := testutil.NewTestContext(http.MethodPost, "/api/comm/nodes/7", nil)
	testutil.SetURLParam(c, "identity", "7")
	handler.CreateNode(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCommHandler_CreateNode_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "invalid identity", err: comm.ErrInvalidIdentity, wantCode: http.StatusBadRequest},
		{name: "retired identity", err: comm.ErrIdentityRetired, wantCode: http.StatusConflict},
		{name: "broker unreachable", err: &comm.ConnectionError{Identity: "7", Broker: "tcp://x", Err: errors.New("refused")}, wantCode: http.StatusServiceUnavailable},
		{name: "unexpected", err: errors.New("boom"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := &mockNodeManager{createFn: func(context.Context, string, *appcomm.Credentials) (*appcomm.Node, error) {
				return nil, tt.err
			}}
			handler := newTestCommHandler(nodes, nil, nil)

			c, w := testutil.NewTestContext(http.MethodPost, "/api/comm/nodes/7", nil)
			testutil.SetURLParam(c, "identity", "7")
			handler.CreateNode(c)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestCommHandler_DeleteNode(t *testing.T) {
	nodes := &mockNodeManager{shutdownFn: func(identity string) bool { return identity == "7" }}
	handler := newTestCommHandler(nodes, nil, nil)

	c, _ := testutil.NewTestContext(http.MethodDelete, "/api/comm/nodes/7", nil)
	testutil.SetURLParam(c, "identity", "7")
	handler.DeleteNode(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())

	c, w := testutil.NewTestContext(http.MethodDelete, "/api/comm/nodes/8", nil)
	testutil.SetURLParam(c, "identity", "8")
	handler.DeleteNode(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =====================================================================
// Sending
// =====================================================================

func TestCommHandler_SendMessage_Success(t *testing.T) {
	var gotPayload any
	nodes := &mockNodeManager{sendFn: func(_ context.Context, identity, destination, protocol, msgType string, payload any) (appcomm.SendStatus, error) {
		assert.Equal(t, "7", identity)
		assert.Equal(t, "9", destination)
		assert.Equal(t, "HL7", protocol)
		assert.Equal(t, "ADT", msgType)
		gotPayload = payload
		return appcomm.StatusBuffered, nil
	}}
	handler := newTestCommHandler(nodes, nil, nil)

	body := map[string]any{"destination": "9", "protocol": "HL7", "type": "ADT", "payload": "MSH|^~\\&"}
	c, w := testutil.NewTestContext(http.MethodPost, "/api/comm/nodes/7/messages", body)
	testutil.SetURLParam(c, "identity", "7")
	handler.SendMessage(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(t, testutil.ParseData(w, &resp))
	assert.Equal(t, "buffered", resp.Status)

	raw, ok := gotPayload.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `"MSH|^~\\&"`, string(raw))
}

func TestCommHandler_SendMessage_NoLiveNode(t *testing.T) {
	nodes := &mockNodeManager{sendFn: func(context.Context, string, string, string, string, any) (appcomm.SendStatus, error) {
		return appcomm.StatusDropped, fmt.Errorf("%w: 7", comm.ErrNodeNotFound)
	}}
	handler := newTestCommHandler(nodes, nil, nil)

	body := map[string]any{"destination": "9", "protocol": "JSON", "payload": map[string]int{"n": 1}}
	c, w := testutil.NewTestContext(http.MethodPost, "/api/comm/nodes/7/messages", body)
	testutil.SetURLParam(c, "identity", "7")
	handler.SendMessage(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommHandler_SendMessage_InvalidRequest(t *testing.T) {
	handler := newTestCommHandler(&mockNodeManager{}, nil, nil)

	c, w := testutil.NewTestContext(http.MethodPost, "/api/comm/nodes/7/messages", map[string]string{"protocol": "JSON"})
	testutil.SetURLParam(c, "identity", "7")
	handler.SendMessage(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =====================================================================
// Inbox and buffer
// =====================================================================

func TestCommHandler_ListMessages(t *testing.T) {
	inbox := &mockInbox{entries: []comm.InboxEntry{{Source: "9", Protocol: "HL7", Payload: "MSH"}}}
	handler := newTestCommHandler(&mockNodeManager{}, inbox, nil)

	c, w := testutil.NewTestContext(http.MethodGet, "/api/comm/nodes/7/messages", nil)
	testutil.SetURLParam(c, "identity", "7")
	testutil.SetQueryParams(c, map[string]string{"limit": "5"})
	handler.ListMessages(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp InboxResponse
	require.NoError(t, testutil.ParseData(w, &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "MSH", resp.Messages[0].Payload)
	assert.Equal(t, int64(5), inbox.limit)
}

func TestCommHandler_ListMessages_Unavailable(t *testing.T) {
	handler := newTestCommHandler(&mockNodeManager{}, nil, nil)
	c, w := testutil.NewTestContext(http.MethodGet, "/api/comm/nodes/7/messages", nil)
	testutil.SetURLParam(c, "identity", "7")
	handler.ListMessages(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	handler = newTestCommHandler(&mockNodeManager{}, &mockInbox{err: errors.New("redis down")}, nil)
	c, w = testutil.NewTestContext(http.MethodGet, "/api/comm/nodes/7/messages", nil)
	testutil.SetURLParam(c, "identity", "7")
	handler.ListMessages(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCommHandler_GetBuffer(t *testing.T) {
	buffer := cache.NewMemoryOutboundBuffer()
	ctx := context.Background()
	require.NoError(t, buffer.Push(ctx, "7", "9", []byte("a")))
	require.NoError(t, buffer.Push(ctx, "7", "9", []byte("b")))
	require.NoError(t, buffer.Push(ctx, "7", "11", []byte("c")))

	handler := newTestCommHandler(&mockNodeManager{}, nil, buffer)

	c, w := testutil.NewTestContext(http.MethodGet, "/api/comm/nodes/7/buffer", nil)
	testutil.SetURLParam(c, "identity", "7")
	handler.GetBuffer(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp BufferResponse
	require.NoError(t, testutil.ParseData(w, &resp))
	assert.Equal(t, int64(3), resp.Total)
	assert.ElementsMatch(t, []BufferDepth{{Destination: "9", Depth: 2}, {Destination: "11", Depth: 1}}, resp.Destinations)
}
