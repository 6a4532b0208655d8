// Package events publishes search observability events to Kafka through an
// async, bounded, drop-on-overflow collector so the request and indexing
// paths never block on the event pipeline.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/huddlechat/message-search/pkg/kafka"
)

// Event type tags.
const (
	TypeSearchCompleted     = "search.completed"
	TypeIndexRetryExhausted = "index.retry_exhausted"
)

// SearchCompleted is emitted after every executed search.
type SearchCompleted struct {
	Type       string    `json:"type"`
	RequestID  string    `json:"request_id,omitempty"`
	UserID     string    `json:"user_id"`
	Query      string    `json:"query"`
	TotalCount int       `json:"total_count"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
}

// IndexRetryExhausted is emitted when an index write is dropped after its
// bounded retries. This is the signal operators alert on; the failure is
// never surfaced to the message-creation path.
type IndexRetryExhausted struct {
	Type      string    `json:"type"`
	Op        string    `json:"op"`
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id,omitempty"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher abstracts the Kafka producer for tests.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Collector buffers events and publishes them from a background goroutine.
type Collector struct {
	publisher Publisher
	eventCh   chan any
	logger    *slog.Logger
	done      chan struct{}
}

// NewCollector creates a Collector with the given buffer size.
func NewCollector(publisher Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	return &Collector{
		publisher: publisher,
		eventCh:   make(chan any, bufferSize),
		logger:    slog.Default().With("component", "event-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. It drains buffered events on ctx
// cancellation before returning.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("event collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event without blocking; events are dropped when the
// buffer is full.
func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("observability event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the publish loop to finish.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event any) {
	if err := c.publisher.Publish(ctx, kafka.Event{
		Key:   "search-events",
		Value: event,
	}); err != nil {
		c.logger.Error("failed to publish observability event", "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}
