package redisx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrDuplicateRequest = errors.New("duplicate request")

func New(ctx context.Context, addr string) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return r, nil
}

// Idempotency claims request keys for batch mutations.
type Idempotency struct {
	Redis *redis.Client
	TTL   time.Duration
}

// Claim records key for op. A key already claimed within TTL returns ErrDuplicateRequest.
func (i *Idempotency) Claim(ctx context.Context, op, key, owner string) error {
	ok, err := i.Redis.SetNX(ctx, fmt.Sprintf(KeyIdemStock, op, key), owner, i.TTL).Result()
	if err != nil {
		return fmt.Errorf("claim idempotency key: %w", err)
	}
	if !ok {
		return ErrDuplicateRequest
	}
	return nil
}

// Release frees a claim so a failed request can be retried with the same key.
func (i *Idempotency) Release(ctx context.Context, op, key string) error {
	return i.Redis.Del(ctx, fmt.Sprintf(KeyIdemStock, op, key)).Err()
}

// AuditTally keeps per-event-type counters for the auditor.
type AuditTally struct {
	Redis *redis.Client
}

// Record counts one event and the rows it touched in a single MULTI/EXEC.
func (a *AuditTally) Record(ctx context.Context, eventType, timestamp string, rows int) error {
	_, err := a.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HIncrBy(ctx, KeyAuditCounts, eventType, 1)
		if timestamp != "" {
			p.HSet(ctx, KeyAuditLastSeen, eventType, timestamp)
		}
		if rows > 0 {
			p.HIncrBy(ctx, KeyAuditRows, eventType, int64(rows))
		}
		return nil
	})
	return err
}

func (a *AuditTally) Counts(ctx context.Context) (map[string]int64, error) {
	raw, err := a.Redis.HGetAll(ctx, KeyAuditCounts).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("audit count %s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}
