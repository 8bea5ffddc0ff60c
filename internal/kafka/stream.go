package kafka

import (
	"context"

	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	HeaderEventType = "x-event-type"
	HeaderOrigin    = "x-origin-client"
)

// EventStream publishes every committed stock event for downstream consumers.
type EventStream struct {
	Producer *Producer
}

func (s *EventStream) Notify(_ context.Context, ev stock.Event, originID string) {
	headers := []kafka.Header{{Key: HeaderEventType, Value: []byte(ev.Type)}}
	if originID != "" {
		headers = append(headers, kafka.Header{Key: HeaderOrigin, Value: []byte(originID)})
	}
	value, err := EncodeEvent(ev)
	if err != nil {
		s.Producer.log.Warn("kafka skipped event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	s.Producer.Publish(stock.PartitionKey(ev), value, headers...)
}

// DecodeEvent turns a stream message back into the event it carries.
func DecodeEvent(m kafka.Message) (stock.Event, error) {
	return stock.Decode(m.Value)
}
