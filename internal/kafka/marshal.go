package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-realtime-stock/internal/stock"
)

// EncodeEvent is the message value carrying ev on the stream.
func EncodeEvent(ev stock.Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return b, nil
}

// UnwrapPayload decodes the typed payload of ev.
func UnwrapPayload[T any](ev stock.Event) (T, error) {
	var t T
	if len(ev.Payload) == 0 {
		return t, fmt.Errorf("%s event has no payload", ev.Type)
	}
	if err := json.Unmarshal(ev.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", ev.Type, err)
	}
	return t, nil
}
