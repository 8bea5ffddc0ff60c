package relay

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelayServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil, nil)
	ep := &Endpoint{
		Hub: hub,
		Snapshot: func(context.Context) (stock.Event, error) {
			return stock.FullResync([]stock.Record{{ID: "seed"}}, time.Now()), nil
		},
		SendBuffer:  16,
		IdleTimeout: 5 * time.Second,
	}
	srv := httptest.NewServer(ep)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, base, id string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"?client_id="+id, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) stock.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := stock.Decode(data)
	require.NoError(t, err)
	return ev
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Len() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestEndpointSendsSnapshotOnConnect(t *testing.T) {
	_, base := newRelayServer(t)
	conn := dial(t, base, "a")

	ev := readEvent(t, conn)
	require.Equal(t, stock.KindFullResync, ev.Type)
	rs, err := ev.Records()
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "seed", rs[0].ID)
}

func TestEndpointAnswersPing(t *testing.T) {
	_, base := newRelayServer(t)
	conn := dial(t, base, "a")
	readEvent(t, conn) // snapshot

	require.NoError(t, conn.WriteJSON(stock.Ping()))
	assert.Equal(t, stock.KindPong, readEvent(t, conn).Type)
}

func TestEndpointRebroadcastsVerbatimToOthers(t *testing.T) {
	hub, base := newRelayServer(t)
	a := dial(t, base, "a")
	b := dial(t, base, "b")
	readEvent(t, a)
	readEvent(t, b)
	waitClients(t, hub, 2)

	// junk first: discarded, channel stays up
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{oops")))

	frame, err := json.Marshal(stock.RecordUpdated(stock.Record{ID: "x", CurrentStock: 9}, time.Now()))
	require.NoError(t, err)
	require.NoError(t, a.WriteMessage(websocket.TextMessage, frame))

	require.NoError(t, b.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, got, err := b.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, frame, got)

	// the sender never hears its own event back: next thing it sees is its pong
	require.NoError(t, a.WriteJSON(stock.Ping()))
	assert.Equal(t, stock.KindPong, readEvent(t, a).Type)
}

func TestEndpointUnregistersOnDisconnect(t *testing.T) {
	hub, base := newRelayServer(t)
	a := dial(t, base, "a")
	readEvent(t, a)
	waitClients(t, hub, 1)

	require.NoError(t, a.Close())
	waitClients(t, hub, 0)
}
