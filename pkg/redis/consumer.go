package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamConsumerConfig configures a StreamConsumer.
type StreamConsumerConfig struct {
	// Stream is the Redis stream name to consume from (required).
	Stream string

	// Group is the consumer group name (required).
	Group string

	// Consumer is the consumer name within the group (required).
	Consumer string

	// Count is the max number of entries to read per batch. Default: 100.
	Count int64

	// Block is how long to wait for new entries. Default: 5 seconds.
	Block time.Duration

	// RetryInterval is how long to wait before retrying after an error.
	// Default: 1 second, doubling up to MaxRetryInterval.
	RetryInterval time.Duration

	// MaxRetryInterval caps the backoff. Default: 30 seconds.
	MaxRetryInterval time.Duration

	// Logger for logging. If nil, uses a no-op logger.
	Logger *zap.Logger
}

// MessageHandler processes a stream message. Return nil to acknowledge, or an
// error to leave the entry pending for redelivery.
type MessageHandler func(ctx context.Context, msg Message) error

// Message is a single stream entry with parsed fields.
type Message struct {
	ID     string
	Stream string
	Values map[string]interface{}
}

// GetHeight extracts the "height" field. Returns 0 if absent or unparseable.
func (m *Message) GetHeight() uint64 {
	val, ok := m.Values["height"]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case string:
		// Redis returns numbers as strings
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	}
	return 0
}

// GetHash extracts the "hash" field. Returns "" if absent.
func (m *Message) GetHash() string {
	if hash, ok := m.Values["hash"].(string); ok {
		return hash
	}
	return ""
}

// StreamConsumer consumes a Redis stream through a consumer group, with
// automatic backoff and reconnection. Entries are acknowledged only after the
// handler succeeds, so a crashed consumer redelivers instead of dropping.
type StreamConsumer struct {
	client *Client
	config StreamConsumerConfig
	logger *zap.Logger
}

// NewStreamConsumer creates a new stream consumer.
func NewStreamConsumer(client *Client, config StreamConsumerConfig) (*StreamConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Stream == "" {
		return nil, errors.New("stream name is required")
	}
	if config.Group == "" || config.Consumer == "" {
		return nil, errors.New("group and consumer names are required")
	}

	if config.Count == 0 {
		config.Count = 100
	}
	if config.Block == 0 {
		config.Block = 5 * time.Second
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = time.Second
	}
	if config.MaxRetryInterval == 0 {
		config.MaxRetryInterval = 30 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StreamConsumer{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// Run consumes messages and calls handler for each. Blocks until the context
// is cancelled.
func (sc *StreamConsumer) Run(ctx context.Context, handler MessageHandler) error {
	if err := sc.client.XGroupCreateMkStream(ctx, sc.config.Stream, sc.config.Group, "0"); err != nil {
		return err
	}
	sc.logger.Info("Consumer group ready",
		zap.String("stream", sc.config.Stream),
		zap.String("group", sc.config.Group),
		zap.String("consumer", sc.config.Consumer))

	retryInterval := sc.config.RetryInterval

	for {
		select {
		case <-ctx.Done():
			sc.logger.Info("Stream consumer shutting down",
				zap.String("stream", sc.config.Stream),
				zap.String("group", sc.config.Group))
			return ctx.Err()
		default:
		}

		streams, err := sc.client.XReadGroup(ctx,
			sc.config.Group,
			sc.config.Consumer,
			sc.config.Stream,
			sc.config.Count,
			sc.config.Block,
		)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, redis.Nil) {
				// Read timed out with no new entries.
				continue
			}

			sc.logger.Warn("Error reading from stream, will retry",
				zap.String("stream", sc.config.Stream),
				zap.Error(err),
				zap.Duration("retryIn", retryInterval))

			select {
			case <-time.After(retryInterval):
				retryInterval = min(retryInterval*2, sc.config.MaxRetryInterval)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		retryInterval = sc.config.RetryInterval

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				msg := Message{
					ID:     xmsg.ID,
					Stream: stream.Stream,
					Values: xmsg.Values,
				}

				if err := handler(ctx, msg); err != nil {
					sc.logger.Error("Error processing message",
						zap.String("stream", sc.config.Stream),
						zap.String("id", msg.ID),
						zap.Error(err))
					// Not acked: the group redelivers it later.
					continue
				}

				if _, ackErr := sc.client.XAck(ctx, sc.config.Stream, sc.config.Group, msg.ID); ackErr != nil {
					sc.logger.Warn("Failed to acknowledge message",
						zap.String("stream", sc.config.Stream),
						zap.String("id", msg.ID),
						zap.Error(ackErr))
				}
			}
		}
	}
}
