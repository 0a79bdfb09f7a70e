// Package orchestrator moves agent messages over Redis streams and runs
// the per-turn control flow: switch evaluation, context packing, and
// memory routing.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/echomind/echomind/internal/protocol"
)

const streamPrefix = "echomind:agent:"

// MessageBus delivers agent messages via Redis Streams, one stream per
// recipient.
type MessageBus struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewMessageBus connects to Redis and verifies the connection.
func NewMessageBus(redisURL string, logger *zap.Logger) (*MessageBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &MessageBus{rdb: rdb, logger: logger}, nil
}

// Publish appends a message to its recipient's stream.
func (mb *MessageBus) Publish(ctx context.Context, msg protocol.AgentMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", msg.ID, err)
	}

	stream := streamPrefix + msg.Recipient
	_, err = mb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}

	mb.logger.Debug("published message",
		zap.String("id", msg.ID),
		zap.String("sender", msg.Sender),
		zap.String("recipient", msg.Recipient),
		zap.String("type", string(msg.Type)))
	return nil
}

// Subscribe listens for messages addressed to an agent, starting from new
// entries. Cancel the context to stop; the channel closes on exit.
func (mb *MessageBus) Subscribe(ctx context.Context, agent string) <-chan protocol.AgentMessage {
	ch := make(chan protocol.AgentMessage, 16)
	stream := streamPrefix + agent

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := mb.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   time.Second * 2,
			}).Result()

			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				continue
			}

			for _, r := range results {
				for _, raw := range r.Messages {
					lastID = raw.ID
					data, ok := raw.Values["data"].(string)
					if !ok {
						continue
					}
					var msg protocol.AgentMessage
					if json.Unmarshal([]byte(data), &msg) == nil {
						ch <- msg
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (mb *MessageBus) Close() error {
	return mb.rdb.Close()
}
