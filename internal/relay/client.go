package relay

import (
	"errors"
	"sync"
	"sync/atomic"
)

// State is the lifecycle of one relay channel: connecting -> open -> closing -> closed.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	errNotOpen    = errors.New("relay: channel not open")
	errBufferFull = errors.New("relay: channel send buffer full")
)

// Client is the server side of one channel. Frames handed to it are
// buffered and written by the channel's own writer goroutine.
type Client struct {
	ID string

	state     atomic.Int32
	mu        sync.Mutex // guards held and the connecting -> open switch
	held      [][]byte
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		ID:   id,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *Client) State() State { return State(c.state.Load()) }

// Open queues first (when non-nil), then every frame held while connecting,
// and moves the channel to open. A channel that is not connecting is left alone.
func (c *Client) Open(first []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() != StateConnecting {
		return errNotOpen
	}
	frames := c.held
	if first != nil {
		frames = append([][]byte{first}, frames...)
	}
	c.held = nil
	for _, f := range frames {
		select {
		case c.send <- f:
		default:
			return errBufferFull
		}
	}
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return errNotOpen
	}
	return nil
}

// Frames is what the writer goroutine drains.
func (c *Client) Frames() <-chan []byte { return c.send }

// Done is closed once the channel starts closing.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close is safe to call any number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		close(c.done)
		c.state.Store(int32(StateClosed))
	})
}

// deliver never blocks: a channel that cannot keep up is a failed channel.
// Frames for a connecting channel are held until Open; one slot of the
// buffer stays free for the greeting.
func (c *Client) deliver(frame []byte) error {
	if c.State() == StateConnecting {
		c.mu.Lock()
		if c.State() == StateConnecting {
			defer c.mu.Unlock()
			if len(c.held) >= cap(c.send)-1 {
				return errBufferFull
			}
			c.held = append(c.held, frame)
			return nil
		}
		c.mu.Unlock()
	}
	if c.State() != StateOpen {
		return errNotOpen
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errNotOpen
	default:
		return errBufferFull
	}
}
