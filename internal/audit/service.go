// Package audit tallies the stock event stream into Redis.
package audit

import (
	"context"
	"fmt"

	kafkax "github.com/ariefcatur/go-realtime-stock/internal/kafka"
	"github.com/ariefcatur/go-realtime-stock/internal/redisx"
	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Service struct {
	Tally *redisx.AuditTally
	Log   *zap.Logger
}

// HandleEvent counts one stream message. Malformed messages are logged and
// acknowledged so they do not block the partition.
func (s *Service) HandleEvent(ctx context.Context, m kafka.Message) error {
	ev, err := kafkax.DecodeEvent(m)
	if err != nil {
		s.Log.Warn("audit skipped malformed event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if !ev.Type.IsSync() {
		s.Log.Debug("audit ignored event", zap.String("type", string(ev.Type)))
		return nil
	}

	rows, err := rowsTouched(ev)
	if err != nil {
		// still counted, just without a size
		s.Log.Warn("audit could not size batch", zap.String("type", string(ev.Type)), zap.Error(err))
		rows = 0
	}
	if err := s.Tally.Record(ctx, string(ev.Type), ev.Timestamp, rows); err != nil {
		return fmt.Errorf("audit record %s: %w", ev.Type, err)
	}

	s.Log.Debug("audit counted",
		zap.String("type", string(ev.Type)),
		zap.String("record_id", ev.RecordID()),
		zap.String("origin", originOf(m)),
		zap.Int("rows", rows),
	)
	return nil
}

func rowsTouched(ev stock.Event) (int, error) {
	switch ev.Type {
	case stock.KindImportApplied:
		p, err := kafkax.UnwrapPayload[stock.ImportPayload](ev)
		if err != nil {
			return 0, err
		}
		return p.Count, nil
	case stock.KindArrivalApplied:
		rs, err := ev.Records()
		return len(rs), err
	}
	return 0, nil
}

func originOf(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == kafkax.HeaderOrigin {
			return string(h.Value)
		}
	}
	return ""
}
