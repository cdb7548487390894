package socket_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pithecene-io/runnel/adapter"
	"github.com/pithecene-io/runnel/adapter/socket"
	"github.com/pithecene-io/runnel/consolidate"
	"github.com/pithecene-io/runnel/types"
)

func wsURL(srv *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	if query != "" {
		u += "?" + query
	}
	return u
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) adapter.TranscriptUpdate {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)

	var update adapter.TranscriptUpdate
	require.NoError(t, json.Unmarshal(data, &update))
	return update
}

func twoSessionUpdate(seq int64) *adapter.TranscriptUpdate {
	return adapter.NewTranscriptUpdate(
		types.RelayMeta{RelayID: "relay-1", Source: "test"},
		seq,
		consolidate.Result{Consolidated: []types.Chunk{
			{SessionID: "s1", Sequence: types.Seq(1), Block: types.TextBlock{Text: "one"}},
			{SessionID: "s2", Sequence: types.Seq(1), Block: types.TextBlock{Text: "two"}},
		}},
		false,
	)
}

func TestHub_BroadcastsUpdates(t *testing.T) {
	hub := socket.NewHub(socket.HubConfig{})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, wsURL(srv, ""))
	require.Eventually(t, func() bool { return hub.Viewers() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(t.Context(), twoSessionUpdate(1)))

	update := readUpdate(t, conn)
	assert.Equal(t, "relay-1", update.RelayID)
	assert.Equal(t, int64(1), update.Sequence)
	assert.Equal(t, adapter.EventTypeTranscriptUpdated, update.EventType)
	assert.Len(t, update.Chunks, 2)
}

func TestHub_SessionFilter(t *testing.T) {
	hub := socket.NewHub(socket.HubConfig{})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, wsURL(srv, socket.SessionParam+"=s2"))
	require.Eventually(t, func() bool { return hub.Viewers() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(t.Context(), twoSessionUpdate(1)))

	update := readUpdate(t, conn)
	require.Len(t, update.Chunks, 1)
	assert.Equal(t, "s2", update.Chunks[0].SessionID)
	text, _ := update.Chunks[0].TextOf()
	assert.Equal(t, "two", text)
}

func TestHub_LateViewerGetsLatest(t *testing.T) {
	hub := socket.NewHub(socket.HubConfig{})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	require.NoError(t, hub.Publish(t.Context(), twoSessionUpdate(1)))
	require.NoError(t, hub.Publish(t.Context(), twoSessionUpdate(2)))

	conn := dial(t, wsURL(srv, ""))
	update := readUpdate(t, conn)
	assert.Equal(t, int64(2), update.Sequence)
}

func TestHub_CloseDisconnectsViewers(t *testing.T) {
	hub := socket.NewHub(socket.HubConfig{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, wsURL(srv, ""))
	require.Eventually(t, func() bool { return hub.Viewers() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Viewers())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal closure, got %v", err)

	assert.ErrorIs(t, hub.Publish(t.Context(), twoSessionUpdate(1)), socket.ErrHubClosed)
	assert.NoError(t, hub.Close(), "second Close should be a no-op")
}

func TestHub_ViewerDisconnectUnregisters(t *testing.T) {
	hub := socket.NewHub(socket.HubConfig{})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, wsURL(srv, ""))
	require.Eventually(t, func() bool { return hub.Viewers() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Viewers() == 0 }, time.Second, 10*time.Millisecond)

	assert.NoError(t, hub.Publish(t.Context(), twoSessionUpdate(1)))
}
