package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	Path          = "/ws"
	maxFrameBytes = 1 << 20
	writeWait     = 10 * time.Second
)

// Endpoint upgrades GET /ws?client_id=... into a relay channel.
type Endpoint struct {
	Hub *Hub
	// Snapshot, when set, is sent to each new channel as a full-resync.
	Snapshot    func(ctx context.Context) (stock.Event, error)
	SendBuffer  int
	IdleTimeout time.Duration
	Log         *zap.Logger

	Upgrader websocket.Upgrader
}

func (e *Endpoint) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e *Endpoint) idle() time.Duration {
	if e.IdleTimeout <= 0 {
		return 60 * time.Second
	}
	return e.IdleTimeout
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("client_id")
	if id == "" {
		id = uuid.NewString()
	}
	conn, err := e.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request
		e.logger().Debug("relay upgrade failed", zap.Error(err))
		return
	}

	c := NewClient(id, e.SendBuffer)
	go e.writeLoop(conn, c)

	var greet func() ([]byte, error)
	if e.Snapshot != nil {
		greet = func() ([]byte, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ev, err := e.Snapshot(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(ev)
		}
	}
	e.Hub.Join(c, greet)
	e.logger().Info("relay channel open", zap.String("client_id", id), zap.Int("clients", e.Hub.Len()))

	e.readLoop(conn, c)

	e.Hub.Unregister(c)
	c.Close()
	e.logger().Info("relay channel closed", zap.String("client_id", id))
}

func (e *Endpoint) readLoop(conn *websocket.Conn, c *Client) {
	log := e.logger().With(zap.String("client_id", c.ID))
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(e.idle()))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(e.idle()))
	})

	pong, _ := json.Marshal(stock.Pong())
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("relay read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(e.idle()))

		ev, err := stock.Decode(data)
		if err != nil {
			log.Warn("relay discarded malformed frame", zap.Error(err))
			continue
		}
		switch {
		case ev.Type == stock.KindPing:
			if err := c.deliver(pong); err != nil && !errors.Is(err, errNotOpen) {
				e.Hub.Drop(c, "buffer_full")
				return
			}
		case ev.Type.IsSync():
			e.Hub.BroadcastRaw(ev.Type, data, c.ID)
		default:
			log.Debug("relay ignored frame", zap.String("type", string(ev.Type)))
		}
	}
}

func (e *Endpoint) writeLoop(conn *websocket.Conn, c *Client) {
	defer conn.Close()
	for {
		select {
		case frame := <-c.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				e.Hub.Drop(c, "write_error")
				return
			}
		case <-c.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
