package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-realtime-stock/internal/relay"
	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/ariefcatur/go-realtime-stock/internal/syncclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveServer struct {
	srv   *httptest.Server
	hub   *relay.Hub
	store *stock.MemoryStore
}

func newLiveServer(t *testing.T) *liveServer {
	t.Helper()
	store := stock.NewMemoryStore()
	hub := relay.NewHub(nil, nil)
	svc := &stock.Service{Store: store, Notifier: hub}
	router := NewRouter(RouterConfig{
		Stock: NewStockHandler(svc, nil, nil),
		Relay: &relay.Endpoint{Hub: hub, Snapshot: svc.Snapshot, SendBuffer: 32, IdleTimeout: 5 * time.Second},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &liveServer{srv: srv, hub: hub, store: store}
}

func (s *liveServer) client(t *testing.T, id string) (*syncclient.Manager, *syncclient.Subscription) {
	t.Helper()
	m := syncclient.New(syncclient.Config{
		URL:            "ws" + strings.TrimPrefix(s.srv.URL, "http") + relay.Path,
		ClientID:       id,
		ReconnectDelay: 50 * time.Millisecond,
	}, nil, nil)
	sub := m.Subscribe()
	m.Start()
	t.Cleanup(m.Close)
	// the greeting proves the relay has registered this channel
	ev := nextEvent(t, sub)
	require.Equal(t, stock.KindFullResync, ev.Type)
	return m, sub
}

func nextEvent(t *testing.T, sub *syncclient.Subscription) stock.Event {
	t.Helper()
	select {
	case ev := <-sub.C():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
		return stock.Event{}
	}
}

func nextNonResync(t *testing.T, sub *syncclient.Subscription) stock.Event {
	t.Helper()
	for {
		if ev := nextEvent(t, sub); ev.Type != stock.KindFullResync {
			return ev
		}
	}
}

func assertQuiet(t *testing.T, sub *syncclient.Subscription, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case ev := <-sub.C():
			if ev.Type != stock.KindFullResync {
				t.Fatalf("unexpected %s event", ev.Type)
			}
		case <-deadline:
			return
		}
	}
}

func TestUpdateReachesPeersButNotOriginator(t *testing.T) {
	ls := newLiveServer(t)
	rec, err := ls.store.Create(t.Context(), stock.Fields{Reference: "X", Name: "Gloves", CurrentStock: 3})
	require.NoError(t, err)

	_, subA := ls.client(t, "A")
	_, subB := ls.client(t, "B")
	require.Equal(t, 2, ls.hub.Len())

	body, _ := json.Marshal(stock.Fields{Reference: "X", Name: "Gloves", CurrentStock: 9})
	req, _ := http.NewRequest(http.MethodPut, ls.srv.URL+"/api/items/"+rec.ID, bytes.NewReader(body))
	req.Header.Set(HeaderClientID, "A")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ev := nextNonResync(t, subB)
	assert.Equal(t, stock.KindRecordUpdated, ev.Type)
	rs, err := ev.Records()
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, 9, rs[0].CurrentStock)

	assertQuiet(t, subA, 200*time.Millisecond)
}

func TestOfflineSendIsDeliveredOnceAfterReconnect(t *testing.T) {
	ls := newLiveServer(t)
	b, _ := ls.client(t, "B")
	_, subC := ls.client(t, "C")

	b.SetOnline(false)
	ev := stock.RecordUpdated(stock.Record{ID: "Y", Reference: "Y", Name: "Saline", CurrentStock: 4}, time.Now())
	b.Send(ev)
	assert.Equal(t, 1, b.Status().Queued)
	assert.Equal(t, syncclient.StateDisconnected, b.Status().State)

	b.SetOnline(true)

	got := nextNonResync(t, subC)
	assert.Equal(t, stock.KindRecordUpdated, got.Type)
	assert.Equal(t, "Y", got.RecordID())
	assertQuiet(t, subC, 300*time.Millisecond)

	require.Eventually(t, func() bool { return b.Status().Queued == 0 }, time.Second, 10*time.Millisecond)
}
