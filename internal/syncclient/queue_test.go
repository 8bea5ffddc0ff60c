package syncclient

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deleted(id string) stock.Event {
	return stock.Event{Type: stock.KindRecordDeleted, Payload: []byte(fmt.Sprintf(`{"id":%q}`, id))}
}

func ids(evs []stock.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.RecordID())
	}
	return out
}

func TestQueueFlushFIFO(t *testing.T) {
	var q Queue
	for _, id := range []string{"a", "b", "c"} {
		q.Enqueue(deleted(id))
	}

	var sent []stock.Event
	n, err := q.Flush(func(ev stock.Event) error {
		sent = append(sent, ev)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c"}, ids(sent))
	assert.Equal(t, 0, q.Len())
}

func TestQueueFlushResumable(t *testing.T) {
	var q Queue
	for _, id := range []string{"a", "b", "c", "d"} {
		q.Enqueue(deleted(id))
	}

	errGone := errors.New("channel closed")
	var sent []string
	n, err := q.Flush(func(ev stock.Event) error {
		if len(sent) == 2 {
			return errGone
		}
		sent = append(sent, ev.RecordID())
		return nil
	})
	require.ErrorIs(t, err, errGone)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"c", "d"}, ids(q.Snapshot()))

	q.Enqueue(deleted("e"))
	n, err = q.Flush(func(ev stock.Event) error {
		sent = append(sent, ev.RecordID())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	// nothing lost, nothing repeated
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, sent)
	assert.Equal(t, 0, q.Len())
}

func TestQueueFlushPicksUpLateEnqueues(t *testing.T) {
	var q Queue
	q.Enqueue(deleted("a"))

	var sent []string
	_, err := q.Flush(func(ev stock.Event) error {
		sent = append(sent, ev.RecordID())
		if ev.RecordID() == "a" {
			q.Enqueue(deleted("b"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sent)
}

func TestQueueUnboundedByDefault(t *testing.T) {
	var q Queue
	for i := 0; i < 10000; i++ {
		assert.Zero(t, q.Enqueue(deleted(fmt.Sprint(i))))
	}
	assert.Equal(t, 10000, q.Len())
}

func TestQueueCapDropsOldest(t *testing.T) {
	q := Queue{MaxQueued: 2}
	q.Enqueue(deleted("a"))
	q.Enqueue(deleted("b"))
	assert.Equal(t, 1, q.Enqueue(deleted("c")))
	assert.Equal(t, []string{"b", "c"}, ids(q.Snapshot()))
}
