package audit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	kafkax "github.com/ariefcatur/go-realtime-stock/internal/kafka"
	"github.com/ariefcatur/go-realtime-stock/internal/redisx"
	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Service{Tally: &redisx.AuditTally{Redis: rdb}, Log: zap.NewNop()}, mr
}

func msg(t *testing.T, ev stock.Event) kafka.Message {
	t.Helper()
	value, err := kafkax.EncodeEvent(ev)
	require.NoError(t, err)
	return kafka.Message{
		Value:   value,
		Headers: []kafka.Header{{Key: kafkax.HeaderOrigin, Value: []byte("tab-1")}},
	}
}

func TestHandleEventCounts(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, svc.HandleEvent(ctx, msg(t, stock.RecordUpdated(stock.Record{ID: "a"}, now))))
	require.NoError(t, svc.HandleEvent(ctx, msg(t, stock.RecordUpdated(stock.Record{ID: "b"}, now))))
	require.NoError(t, svc.HandleEvent(ctx, msg(t, stock.ImportApplied(25, now))))
	require.NoError(t, svc.HandleEvent(ctx, msg(t, stock.ArrivalApplied([]stock.Record{{ID: "a"}, {ID: "b"}}, now))))

	counts, err := svc.Tally.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		"record-updated":  2,
		"import-applied":  1,
		"arrival-applied": 1,
	}, counts)
	assert.Equal(t, "25", mr.HGet(redisx.KeyAuditRows, "import-applied"))
	assert.Equal(t, "2", mr.HGet(redisx.KeyAuditRows, "arrival-applied"))
	assert.Equal(t, now.Format(time.RFC3339Nano), mr.HGet(redisx.KeyAuditLastSeen, "record-updated"))
}

func TestHandleEventSkipsJunk(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.HandleEvent(ctx, kafka.Message{Value: []byte("not json")}))
	require.NoError(t, svc.HandleEvent(ctx, msg(t, stock.Ping())))

	counts, err := svc.Tally.Counts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestHandleEventRedisDown(t *testing.T) {
	svc, mr := newService(t)
	mr.Close()
	err := svc.HandleEvent(context.Background(), msg(t, stock.RecordDeleted("a", time.Now())))
	assert.Error(t, err)
}

func TestHandleEventRetryCountsOnce(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()
	m := msg(t, stock.ImportApplied(4, time.Now()))

	mr.SetError("LOADING")
	require.Error(t, svc.HandleEvent(ctx, m))
	mr.SetError("")

	// the consumer redelivers the uncommitted message
	require.NoError(t, svc.HandleEvent(ctx, m))

	counts, err := svc.Tally.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"import-applied": 1}, counts)
	assert.Equal(t, "4", mr.HGet(redisx.KeyAuditRows, "import-applied"))
}
