// Package queue implements the stream transport of the gateway: consuming
// inbound XML envelopes from a Redis stream (consumer group, explicit acks)
// and publishing outbound replies and telemetry events to named topics.
package queue

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

// Producer appends string payloads to Redis streams.
type Producer struct {
	RDB *goredis.Client
}

// Publish appends one payload to topic.
func (p *Producer) Publish(ctx context.Context, topic, payload string) error {
	return p.RDB.XAdd(ctx, &goredis.XAddArgs{
		Stream: topic,
		Values: map[string]any{"payload": payload},
	}).Err()
}
