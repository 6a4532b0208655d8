// Package consumer wires the message lifecycle stream into the indexer.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/huddlechat/message-search/internal/message"
	"github.com/huddlechat/message-search/internal/search/indexer"
	"github.com/huddlechat/message-search/pkg/kafka"
)

// Invalidator drops cached search responses after the index changes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Consumer applies message lifecycle events to the index. It runs as the
// handler of a Kafka consumer, so events within a room arrive in commit
// order.
type Consumer struct {
	indexer *indexer.Indexer
	cache   Invalidator
	logger  *slog.Logger
}

// New creates a Consumer. cache may be nil when caching is disabled.
func New(ix *indexer.Indexer, cache Invalidator) *Consumer {
	return &Consumer{
		indexer: ix,
		cache:   cache,
		logger:  slog.Default().With("component", "message-consumer"),
	}
}

// Handle decodes one lifecycle event and applies it. Malformed payloads are
// logged and skipped rather than returned as errors; returning an error
// would stall the partition behind a poison message forever.
func (c *Consumer) Handle(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[message.Event](value)
	if err != nil {
		c.logger.Error("dropping undecodable message event",
			"room_key", string(key),
			"error", err,
		)
		return nil
	}

	switch event.Type {
	case message.EventCreated:
		if event.Message == nil {
			c.logger.Error("created event without message payload", "message_id", event.MessageID)
			return nil
		}
		c.indexer.OnMessageCreated(ctx, *event.Message)
	case message.EventDeleted:
		c.indexer.OnMessageDeleted(ctx, event.MessageID)
	default:
		c.logger.Warn("unknown message event type", "type", event.Type, "message_id", event.MessageID)
		return nil
	}

	if c.cache != nil {
		if err := c.cache.Invalidate(ctx); err != nil {
			c.logger.Warn("cache invalidation failed", "error", err)
		}
	}
	return nil
}

// Run consumes the message-events topic until ctx is cancelled.
func Run(ctx context.Context, kconsumer *kafka.Consumer) error {
	if err := kconsumer.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("message consumer: %w", err)
	}
	return nil
}
