package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ariefcatur/go-realtime-stock/internal/observability"
	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"go.uber.org/zap"
)

// Hub owns the set of connected channels. It persists nothing.
type Hub struct {
	mu      sync.RWMutex
	clients []*Client // registration order = delivery order

	log     *zap.Logger
	metrics *observability.Metrics
}

func NewHub(log *zap.Logger, metrics *observability.Metrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, metrics: metrics}
}

// Register adds c. A live channel already registered under the same id is
// a stale half-open connection of the same client and gets replaced.
func (h *Hub) Register(c *Client) {
	h.Join(c, nil)
}

// Join registers c, then builds the greeting without holding the hub lock.
// Broadcasts that race the greeting are held by c and queued right after
// it, so c never sees an event older than its greeting.
func (h *Hub) Join(c *Client, greet func() ([]byte, error)) {
	h.mu.Lock()
	var stale []*Client
	kept := h.clients[:0]
	for _, old := range h.clients {
		if old == c {
			continue
		}
		if old.ID == c.ID {
			stale = append(stale, old)
			continue
		}
		kept = append(kept, old)
	}
	h.clients = append(kept, c)
	h.setGauge()
	h.mu.Unlock()

	for _, old := range stale {
		old.Close()
		h.log.Info("relay replaced stale channel", zap.String("client_id", old.ID))
	}

	var frame []byte
	if greet != nil {
		var err error
		if frame, err = greet(); err != nil {
			h.log.Warn("relay greeting failed", zap.String("client_id", c.ID), zap.Error(err))
			frame = nil
		}
	}
	if err := c.Open(frame); err != nil && !errors.Is(err, errNotOpen) {
		h.Drop(c, "buffer_full")
	}
}

// Unregister removes c. Unknown channels are ignored.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) bool {
	for i, cur := range h.clients {
		if cur == c {
			h.clients = append(h.clients[:i], h.clients[i+1:]...)
			h.setGauge()
			return true
		}
	}
	return false
}

func (h *Hub) setGauge() {
	if h.metrics != nil {
		h.metrics.RelayClients.Set(float64(len(h.clients)))
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast serializes ev once and fans it out to every open channel but excludeID.
func (h *Hub) Broadcast(ev stock.Event, excludeID string) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("relay marshal event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	h.BroadcastRaw(ev.Type, frame, excludeID)
}

// BroadcastRaw relays an already encoded frame verbatim.
func (h *Hub) BroadcastRaw(kind stock.Kind, frame []byte, excludeID string) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if excludeID != "" && c.ID == excludeID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if h.metrics != nil {
		h.metrics.RelayBroadcasts.WithLabelValues(string(kind)).Inc()
	}

	var failed []*Client
	for _, c := range targets {
		err := c.deliver(frame)
		switch {
		case err == nil:
			if h.metrics != nil {
				h.metrics.RelayDelivered.Inc()
			}
		case errors.Is(err, errNotOpen):
			// connecting or already closing, not an error
		default:
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.Drop(c, "buffer_full")
	}
}

// Drop unregisters and closes a channel that failed. Other channels are unaffected.
func (h *Hub) Drop(c *Client, reason string) {
	if h.Unregister(c) {
		h.log.Warn("relay dropped channel", zap.String("client_id", c.ID), zap.String("reason", reason))
		if h.metrics != nil {
			h.metrics.RelayDropped.WithLabelValues(reason).Inc()
		}
	}
	c.Close()
}

// Notify makes the hub a stock.Notifier.
func (h *Hub) Notify(_ context.Context, ev stock.Event, originID string) {
	h.Broadcast(ev, originID)
}
