package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

type Config struct {
	URL      string
	ClientID string

	KeepAlive      time.Duration // default 25s
	ReconnectDelay time.Duration // flat, default 3s
	DialTimeout    time.Duration // default 10s
	MaxQueued      int           // 0 = unbounded

	// StartOffline starts with the network-presence flag down.
	StartOffline bool
}

func (c Config) withDefaults() Config {
	if c.ClientID == "" {
		c.ClientID = uuid.NewString()
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 25 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 3 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	return c
}

// Status is what a connectivity indicator shows.
type Status struct {
	State  State
	Online bool
	Queued int
}

var errStale = errors.New("syncclient: channel superseded")

// Manager keeps exactly one logical channel to the relay and reconnects it.
//
// Every open attempt gets a new generation number; callbacks from an older
// channel (reads, keep-alive, dial results) compare generations and back off.
type Manager struct {
	cfg    Config
	dialer Dialer
	log    *zap.Logger
	queue  *Queue

	mu            sync.Mutex
	state         State
	online        bool
	closed        bool
	gen           uint64
	ch            Channel
	stopKeepAlive chan struct{}
	reconnect     *time.Timer
	last          *stock.Event
	subs          map[*Subscription]struct{}

	writeMu sync.Mutex
}

func New(cfg Config, dialer Dialer, log *zap.Logger) *Manager {
	cfg = cfg.withDefaults()
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		dialer: dialer,
		log:    log.With(zap.String("client_id", cfg.ClientID)),
		queue:  &Queue{MaxQueued: cfg.MaxQueued},
		online: !cfg.StartOffline,
		subs:   map[*Subscription]struct{}{},
	}
}

func (m *Manager) ClientID() string { return m.cfg.ClientID }

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, Online: m.online, Queued: m.queue.Len()}
}

// Start connects if the network is up.
func (m *Manager) Start() { m.Connect() }

// Connect opens the channel. It does nothing while a channel is connecting
// or connected, while offline, or after Close.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.closed || !m.online || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.stopReconnectLocked()
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	go m.dial(gen)
}

func (m *Manager) endpoint() string {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return m.cfg.URL
	}
	q := u.Query()
	q.Set("client_id", m.cfg.ClientID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (m *Manager) dial(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	ch, err := m.dialer.Dial(ctx, m.endpoint())
	cancel()

	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		if ch != nil {
			_ = ch.Close()
		}
		return
	}
	if err != nil {
		m.state = StateDisconnected
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		m.log.Warn("sync dial failed", zap.Error(err), zap.Duration("retry_in", m.cfg.ReconnectDelay))
		return
	}
	m.state = StateConnected
	m.ch = ch
	stop := make(chan struct{})
	m.stopKeepAlive = stop
	m.mu.Unlock()

	m.log.Info("sync connected")
	go m.readLoop(gen, ch)
	go m.keepAlive(gen, ch, stop)
	m.flush()
}

func (m *Manager) readLoop(gen uint64, ch Channel) {
	for {
		data, err := ch.ReadMessage()
		if err != nil {
			m.handleClose(gen, err)
			return
		}
		ev, err := stock.Decode(data)
		if err != nil {
			m.log.Warn("sync discarded malformed frame", zap.Error(err))
			continue
		}
		if ev.Type == stock.KindPong {
			continue
		}
		if !ev.Type.IsSync() {
			m.log.Debug("sync ignored frame", zap.String("type", string(ev.Type)))
			continue
		}
		if !m.publish(gen, ev) {
			return
		}
	}
}

func (m *Manager) publish(gen uint64, ev stock.Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return false
	}
	m.last = &ev
	for s := range m.subs {
		s.push(ev)
	}
	return true
}

func (m *Manager) keepAlive(gen uint64, ch Channel, stop <-chan struct{}) {
	t := time.NewTicker(m.cfg.KeepAlive)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := m.writeEvent(ch, stock.Ping()); err != nil {
				m.handleClose(gen, err)
				return
			}
		}
	}
}

// handleClose runs once per generation, for clean closes and errors alike.
func (m *Manager) handleClose(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	if m.online && !m.closed {
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()
	m.log.Warn("sync channel closed", zap.Error(cause), zap.Duration("retry_in", m.cfg.ReconnectDelay))
}

// teardownLocked drops the current channel and its keep-alive.
func (m *Manager) teardownLocked() {
	m.state = StateDisconnected
	if m.stopKeepAlive != nil {
		close(m.stopKeepAlive)
		m.stopKeepAlive = nil
	}
	if m.ch != nil {
		_ = m.ch.Close()
		m.ch = nil
	}
}

// scheduleReconnectLocked keeps at most one pending reconnect timer.
func (m *Manager) scheduleReconnectLocked() {
	m.stopReconnectLocked()
	m.reconnect = time.AfterFunc(m.cfg.ReconnectDelay, m.Connect)
}

func (m *Manager) stopReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

// SetOnline feeds the host network-presence signal. Coming online connects
// right away, skipping any pending backoff. Going offline drops the channel
// even if it still looks open; sends queue up until the next connect.
func (m *Manager) SetOnline(online bool) {
	m.mu.Lock()
	m.online = online
	if online {
		m.stopReconnectLocked()
		m.mu.Unlock()
		m.Connect()
		return
	}
	m.gen++ // orphan any dial or reader still in flight
	m.stopReconnectLocked()
	m.teardownLocked()
	m.mu.Unlock()
	m.log.Info("sync offline")
}

// Send transmits ev when connected and queues it otherwise. Events pass
// through the queue either way so a send never overtakes queued ones.
func (m *Manager) Send(ev stock.Event) {
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if dropped := m.queue.Enqueue(ev); dropped > 0 {
		m.log.Warn("sync queue full, dropped oldest", zap.Int("dropped", dropped))
	}
	m.flush()
}

func (m *Manager) flush() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	gen, ch := m.gen, m.ch
	m.mu.Unlock()

	sent, err := m.queue.Flush(func(ev stock.Event) error {
		if !m.current(gen) {
			return errStale
		}
		return m.writeEvent(ch, ev)
	})
	if sent > 0 {
		m.log.Debug("sync flushed", zap.Int("sent", sent), zap.Int("left", m.queue.Len()))
	}
	if err != nil && !errors.Is(err, errStale) {
		m.handleClose(gen, err)
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen && m.state == StateConnected
}

func (m *Manager) writeEvent(ch Channel, ev stock.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return ch.WriteMessage(data)
}

// Subscribe returns a feed of every sync event received from now on.
func (m *Manager) Subscribe() *Subscription {
	s := newSubscription()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		s.Close()
		return s
	}
	m.subs[s] = struct{}{}
	return s
}

func (m *Manager) Unsubscribe(s *Subscription) {
	m.mu.Lock()
	delete(m.subs, s)
	m.mu.Unlock()
	s.Close()
}

// Last is the most recently received sync event.
func (m *Manager) Last() (stock.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return stock.Event{}, false
	}
	return *m.last, true
}

// Pending is a copy of the events still waiting for the wire.
func (m *Manager) Pending() []stock.Event { return m.queue.Snapshot() }

// Close stops timers, closes the channel and ends all subscriptions.
// Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.gen++
	m.stopReconnectLocked()
	m.teardownLocked()
	for s := range m.subs {
		s.Close()
		delete(m.subs, s)
	}
}
