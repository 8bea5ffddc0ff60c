package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ariefcatur/go-realtime-stock/internal/stock"
)

var errFakeClosed = errors.New("fake channel closed")

// fakeChannel is an in-memory relay connection.
type fakeChannel struct {
	in chan []byte

	mu        sync.Mutex
	written   []stock.Event
	failAfter int // writes allowed before failing; -1 = never
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{in: make(chan []byte, 16), failAfter: -1, closed: make(chan struct{})}
}

func (c *fakeChannel) ReadMessage() ([]byte, error) {
	select {
	case d := <-c.in:
		return d, nil
	case <-c.closed:
		return nil, errFakeClosed
	}
}

func (c *fakeChannel) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errFakeClosed
	default:
	}
	if c.failAfter >= 0 && len(c.written) >= c.failAfter {
		return errFakeClosed
	}
	ev, err := stock.Decode(data)
	if err != nil {
		return err
	}
	c.written = append(c.written, ev)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeChannel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// sent returns written sync events, keep-alives filtered out.
func (c *fakeChannel) sent() []stock.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []stock.Event
	for _, ev := range c.written {
		if ev.Type != stock.KindPing {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeChannel) pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.written {
		if ev.Type == stock.KindPing {
			n++
		}
	}
	return n
}

func (c *fakeChannel) push(ev stock.Event) {
	b, _ := json.Marshal(ev)
	c.in <- b
}

// fakeDialer hands out prepared channels in order, or fails when it has none.
type fakeDialer struct {
	mu       sync.Mutex
	channels []*fakeChannel
	dials    int
	urls     []string
	block    chan struct{}
}

func (d *fakeDialer) add(ch ...*fakeChannel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, ch...)
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Channel, error) {
	d.mu.Lock()
	block := d.block
	d.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.urls = append(d.urls, url)
	if len(d.channels) == 0 {
		return nil, errors.New("relay unreachable")
	}
	ch := d.channels[0]
	d.channels = d.channels[1:]
	return ch, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
