package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/fundauth/internal/custody"
)

const (
	streamPrefix     = "fundauth:events:"
	defaultStreamLen = 100_000
	publishTimeout   = 2 * time.Second
)

// RedisStreamPublisher appends events to a per-ledger Redis stream.
type RedisStreamPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewRedisStreamPublisher builds a publisher; maxLen <= 0 uses the default
// approximate stream cap.
func NewRedisStreamPublisher(client *redis.Client, maxLen int64) *RedisStreamPublisher {
	if maxLen <= 0 {
		maxLen = defaultStreamLen
	}
	return &RedisStreamPublisher{client: client, maxLen: maxLen}
}

// StreamKey names the stream holding events for ledger.
func StreamKey(ledger custody.Address) string {
	return streamPrefix + ledger.Hex()
}

// Publish implements custody.Publisher.
func (p *RedisStreamPublisher) Publish(ctx context.Context, e custody.Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	values := map[string]any{
		"id":           e.ID,
		"kind":         e.Kind,
		"sequence":     e.Sequence,
		"counterparty": e.Counterparty.Hex(),
		"caller":       e.Caller.Hex(),
		"amount":       e.Amount.String(),
		"occurred_at":  e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Nonce != nil {
		values["nonce"] = e.Nonce.Hex()
	}

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(e.Ledger),
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", StreamKey(e.Ledger), err)
	}
	return nil
}
