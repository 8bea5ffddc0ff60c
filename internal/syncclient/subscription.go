package syncclient

import (
	"sync"

	"github.com/ariefcatur/go-realtime-stock/internal/stock"
)

// Subscription delivers every received event, in order, however slowly
// the consumer reads. Pending events are held in an unbounded mailbox.
type Subscription struct {
	mu      sync.Mutex
	pending []stock.Event

	signal chan struct{}
	out    chan stock.Event
	done   chan struct{}
	once   sync.Once
}

func newSubscription() *Subscription {
	s := &Subscription{
		signal: make(chan struct{}, 1),
		out:    make(chan stock.Event),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// C is closed after the subscription is closed.
func (s *Subscription) C() <-chan stock.Event { return s.out }

func (s *Subscription) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription) push(ev stock.Event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.pending[0]
		s.pending[0] = stock.Event{}
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
